package partlist

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
)

// WritePartitions pushes disk's layout buffer to the device if the disk
// is dirty, working around the kernel's quirk of rounding PartitionCount
// to a multiple of 4 internally: the caller must save and restore the
// original count around the call.
func WritePartitions(ctx context.Context, dev BlockDevice, disk *Disk) Status {
	if !disk.Dirty {
		return Success
	}
	if disk.Style == Gpt {
		return WarnPartition
	}
	if disk.LayoutBuffer == nil {
		return Success
	}

	h, err := dev.Open(ctx, disk.DevicePath(0))
	if err != nil {
		log.Printf("write partitions disk %d: open: %v", disk.DiskNumber, err)
		return TransientIo
	}
	defer h.Close()

	savedCount := len(disk.LayoutBuffer.Partitions)

	if err := h.WriteLayout(disk.LayoutBuffer); err != nil {
		log.Printf("write partitions disk %d: write layout: %v", disk.DiskNumber, err)
		return TransientIo
	}

	if len(disk.LayoutBuffer.Partitions) != savedCount {
		disk.LayoutBuffer.Partitions = disk.LayoutBuffer.Partitions[:savedCount]
	}

	applyWrittenPartitionNumbers(disk)
	disk.Dirty = false

	return Success
}

// applyWrittenPartitionNumbers copies the kernel-assigned partition
// numbers (mirrored here by the on-disk numbering already computed in
// update_disk_layout) back onto each region and clears its new flag.
func applyWrittenPartitionNumbers(disk *Disk) {
	for _, r := range append(append([]*Region(nil), disk.Primary...), disk.Logical...) {
		if !r.IsPartitioned {
			continue
		}
		r.CurrentPartitionNumber = r.OnDiskPartitionNumber
		r.New = false
	}
}

// WritePartitionsToDisk writes every dirty, non-GPT disk in list. Per-disk
// failures are logged, not propagated: the caller retries on the next
// call by re-checking the dirty flag.
func WritePartitionsToDisk(ctx context.Context, list *PartitionList) {
	updateDiskSignatures(list)

	for _, disk := range list.Disks {
		if disk.Style == Gpt {
			continue
		}
		if !disk.Dirty {
			continue
		}
		if status := WritePartitions(ctx, list.Device, disk); status != Success {
			log.Printf("write partitions to disk %d: %v", disk.DiskNumber, status)
			continue
		}
	}
}

// setDiskSignature assigns disk a fresh, unique, non-zero signature
// derived from the current time, regenerating on collision with any
// other disk's signature.
func setDiskSignature(list *PartitionList, disk *Disk, clock TimeSource) {
	if disk.Style == Gpt {
		return
	}

	for {
		now := clock.Now()
		year, month, day := now.Year(), int(now.Month()), now.Day()
		hour, minute, second := now.Hour(), now.Minute(), now.Second()

		var b [4]byte
		b[0] = byte(year&0xFF) + byte(hour&0xFF)
		b[1] = byte((year>>8)&0xFF) + byte(minute&0xFF)
		b[2] = byte(month&0xFF) + byte(second&0xFF)
		b[3] = byte(day&0xFF) + byte((now.Nanosecond()/1e6)&0xFF)

		sig := binary.LittleEndian.Uint32(b[:])
		if sig == 0 {
			continue
		}

		collision := false
		for _, other := range list.Disks {
			if other == disk || other.Style == Gpt {
				continue
			}
			if other.Signature == sig {
				collision = true
				break
			}
		}
		if collision {
			continue
		}

		disk.Signature = sig
		if disk.LayoutBuffer != nil {
			disk.LayoutBuffer.Signature = sig
			if len(disk.LayoutBuffer.Partitions) > 0 {
				disk.LayoutBuffer.Partitions[0].RewritePartition = true
			}
		}
		disk.Dirty = true
		return
	}
}

// updateDiskSignatures assigns a fresh signature to every disk that
// currently has none, run once, before any writeback.
func updateDiskSignatures(list *PartitionList) {
	clock := list.Clock
	if clock == nil {
		clock = systemClock{}
	}
	for _, disk := range list.Disks {
		if disk.Style == Gpt {
			continue
		}
		if disk.Signature == 0 {
			setDiskSignature(list, disk, clock)
		}
	}
}

// mountedDeviceValue is the packed {signature, starting_offset} payload
// stored under SYSTEM\MountedDevices for each assigned drive letter.
type mountedDeviceValue struct {
	Signature      uint32
	StartingOffset int64
}

func (v mountedDeviceValue) marshal() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], v.Signature)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(v.StartingOffset))
	return buf
}

// SetMountedDeviceValue writes one \DosDevices\<L>: entry to the mount
// registry.
func SetMountedDeviceValue(registry MountRegistry, letter byte, signature uint32, startingOffset int64) error {
	name := fmt.Sprintf(`\DosDevices\%c:`, letter)
	value := mountedDeviceValue{Signature: signature, StartingOffset: startingOffset}
	if err := registry.SetBinaryValue(`SYSTEM\MountedDevices`, name, value.marshal()); err != nil {
		return fmt.Errorf("set mounted device value %s: %w", name, err)
	}
	return nil
}

// SetMountedDeviceValues writes a mount-point registry entry for every
// partitioned region across all disks that has an assigned drive letter.
func SetMountedDeviceValues(list *PartitionList) {
	for _, disk := range list.Disks {
		for _, r := range append(append([]*Region(nil), disk.Primary...), disk.Logical...) {
			if !r.IsPartitioned || r.Volume.DriveLetter == 0 {
				continue
			}
			offset := int64(sectorsToBytes(r.StartSector, disk.Geometry.BytesPerSector))
			if err := SetMountedDeviceValue(list.MountRegistry, r.Volume.DriveLetter, disk.Signature, offset); err != nil {
				log.Printf("disk %d partition %d: %v", disk.DiskNumber, r.OnDiskPartitionNumber, err)
			}
		}
	}
}
