package partlist

import (
	"context"
	"fmt"
)

// mountVolume opens region's device, infers its filesystem, and sets the
// volume's format state. mbrType, when non-nil, is consulted when the
// inferred filesystem comes back "RAW" to decide between Unformatted and
// UnknownFormat.
func mountVolume(ctx context.Context, dev BlockDevice, fs FilesystemInferrer, region *Region, mbrType *byte) error {
	region.Volume.Format = Unformatted
	region.Volume.Filesystem = ""

	if region.Volume.DeviceName == "" {
		return nil
	}

	h, err := dev.Open(ctx, region.Volume.DeviceName)
	if err != nil {
		return fmt.Errorf("mount volume %s: open: %w", region.Volume.DeviceName, err)
	}
	defer h.Close()

	name, _, err := fs.InferFileSystem(h)
	if err != nil {
		return fmt.Errorf("mount volume %s: infer filesystem: %w", region.Volume.DeviceName, err)
	}
	region.Volume.Filesystem = name

	if name == "RAW" {
		if mbrType != nil && fatFamilyTypes[*mbrType] {
			region.Volume.Format = Unformatted
		} else {
			h.Close()
			_ = dismountVolume(ctx, dev, &region.Volume)
			region.Volume.Format = UnknownFormat
			region.Volume.Filesystem = ""
			return nil
		}
	} else {
		region.Volume.Format = Formatted
	}

	label, err := fs.VolumeLabel(h)
	if err == nil {
		region.Volume.Label = label
	}

	return nil
}

// MountVolume is the public entry point matching spec.md §6's
// mount_volume operation.
func MountVolume(ctx context.Context, list *PartitionList, region *Region) error {
	var mbrType *byte
	if region.IsPartitioned {
		mbrType = &region.PartitionType
	}
	return mountVolume(ctx, list.Device, list.FS, region, mbrType)
}

// dismountVolume locks, dismounts, and unlocks volume's device if it is
// currently mounted, always resetting the volume's mount-related fields
// regardless of whether the lock/dismount calls succeed.
func dismountVolume(ctx context.Context, dev BlockDevice, vol *Volume) error {
	defer func() {
		vol.DriveLetter = 0
		vol.Filesystem = ""
		vol.Label = ""
		vol.Format = Unformatted
	}()

	if vol.DeviceName == "" {
		return nil
	}

	h, err := dev.Open(ctx, vol.DeviceName)
	if err != nil {
		return fmt.Errorf("dismount volume %s: open: %w", vol.DeviceName, err)
	}
	defer h.Close()

	lockErr := h.LockVolume()
	dismountErr := h.DismountVolume()
	_ = h.UnlockVolume()

	if lockErr != nil {
		return fmt.Errorf("dismount volume %s: lock: %w", vol.DeviceName, lockErr)
	}
	if dismountErr != nil {
		return fmt.Errorf("dismount volume %s: dismount: %w", vol.DeviceName, dismountErr)
	}
	return nil
}

// DismountVolume is the public entry point matching spec.md §6's
// dismount_volume operation.
func DismountVolume(ctx context.Context, list *PartitionList, region *Region) error {
	return dismountVolume(ctx, list.Device, &region.Volume)
}
