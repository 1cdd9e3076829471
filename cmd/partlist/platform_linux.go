//go:build linux

package main

import "github.com/lowkeyfred/reactos"

func platformBlockDevice() partlist.BlockDevice {
	return partlist.LinuxBlockDevice{}
}

func defaultConfigStore() partlist.ConfigStore {
	return partlist.NewMemConfigStore()
}

func defaultMountRegistry() partlist.MountRegistry {
	return partlist.NewMemMountRegistry()
}
