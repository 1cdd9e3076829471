//go:build windows

package partlist

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// WindowsConfigStore reads the firmware map and related keys from the
// real Windows registry, via golang.org/x/sys/windows/registry.
type WindowsConfigStore struct {
	Root registry.Key // registry.LOCAL_MACHINE in production
}

func (s WindowsConfigStore) Subkeys(key string) ([]string, error) {
	k, err := registry.OpenKey(s.Root, key, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("open key %s: %w", key, err)
	}
	defer k.Close()
	return k.ReadSubKeyNames(-1)
}

func (s WindowsConfigStore) StringValue(key, name string) (string, error) {
	k, err := registry.OpenKey(s.Root, key, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open key %s: %w", key, err)
	}
	defer k.Close()
	v, _, err := k.GetStringValue(name)
	return v, err
}

func (s WindowsConfigStore) BinaryValue(key, name string) ([]byte, error) {
	k, err := registry.OpenKey(s.Root, key, registry.QUERY_VALUE)
	if err != nil {
		return nil, fmt.Errorf("open key %s: %w", key, err)
	}
	defer k.Close()
	v, _, err := k.GetBinaryValue(name)
	return v, err
}

// WindowsMountRegistry writes SYSTEM\MountedDevices values to the real
// Windows registry.
type WindowsMountRegistry struct {
	Root registry.Key
}

func (m WindowsMountRegistry) SetBinaryValue(key, name string, value []byte) error {
	k, _, err := registry.CreateKey(m.Root, key, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open key %s: %w", key, err)
	}
	defer k.Close()
	return k.SetBinaryValue(name, value)
}
