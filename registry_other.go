//go:build !windows

package partlist

import "fmt"

// MemConfigStore is an in-memory ConfigStore used on non-Windows builds
// and in tests, in place of the real Windows registry.
type MemConfigStore struct {
	Subkeys_      map[string][]string
	StringValues  map[[2]string]string
	BinaryValues  map[[2]string][]byte
}

func NewMemConfigStore() *MemConfigStore {
	return &MemConfigStore{
		Subkeys_:     make(map[string][]string),
		StringValues: make(map[[2]string]string),
		BinaryValues: make(map[[2]string][]byte),
	}
}

func (s *MemConfigStore) Subkeys(key string) ([]string, error) {
	v, ok := s.Subkeys_[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return v, nil
}

func (s *MemConfigStore) StringValue(key, name string) (string, error) {
	v, ok := s.StringValues[[2]string{key, name}]
	if !ok {
		return "", fmt.Errorf("no such value %s\\%s", key, name)
	}
	return v, nil
}

func (s *MemConfigStore) BinaryValue(key, name string) ([]byte, error) {
	v, ok := s.BinaryValues[[2]string{key, name}]
	if !ok {
		return nil, fmt.Errorf("no such value %s\\%s", key, name)
	}
	return v, nil
}

// MemMountRegistry is an in-memory MountRegistry used on non-Windows
// builds and in tests.
type MemMountRegistry struct {
	Values map[[2]string][]byte
}

func NewMemMountRegistry() *MemMountRegistry {
	return &MemMountRegistry{Values: make(map[[2]string][]byte)}
}

func (m *MemMountRegistry) SetBinaryValue(key, name string, value []byte) error {
	m.Values[[2]string{key, name}] = value
	return nil
}
