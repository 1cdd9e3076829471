//go:build windows

package main

import (
	"golang.org/x/sys/windows/registry"

	"github.com/lowkeyfred/reactos"
)

func platformBlockDevice() partlist.BlockDevice {
	return partlist.WindowsBlockDevice{}
}

func defaultConfigStore() partlist.ConfigStore {
	return partlist.WindowsConfigStore{Root: registry.LOCAL_MACHINE}
}

func defaultMountRegistry() partlist.MountRegistry {
	return partlist.WindowsMountRegistry{Root: registry.LOCAL_MACHINE}
}
