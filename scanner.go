package partlist

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
)

// recognizedPartitionTypes mirrors IsRecognizedPartition: types the
// scanner will mount and assign a device name to.
var recognizedPartitionTypes = map[byte]bool{
	PartitionFat12:       true,
	PartitionFat16Small:  true,
	PartitionFat16:       true,
	PartitionIFS:         true,
	PartitionFat32:       true,
	PartitionFat32Xint13: true,
	PartitionXint13:      true,
}

func isContainerType(t byte) bool {
	return t == PartitionExtended || t == PartitionXint13Extended
}

// computeMBRChecksum computes the two's-complement negation of the sum of
// the first 128 little-endian 32-bit words of a 512-byte boot sector.
func computeMBRChecksum(sector []byte) uint32 {
	var sum uint32
	for i := 0; i < 128 && i*4+4 <= len(sector); i++ {
		sum += binary.LittleEndian.Uint32(sector[i*4:])
	}
	return -sum
}

// classifyDiskStyle inspects a freshly read boot sector and returns the
// disk's style, following spec.md §4.3's exact ordering.
func classifyDiskStyle(sector []byte) DiskStyle {
	allZero := true
	for _, b := range sector {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return Uninitialized
	}

	magic := binary.LittleEndian.Uint16(sector[mbrMagicOffset:])
	if magic != MBRSignatureMagic {
		return Raw
	}

	entries := parseMBREntries(sector)
	if entries[0].PartitionType == PartitionGptProtective &&
		entries[1].PartitionType == 0 && entries[2].PartitionType == 0 && entries[3].PartitionType == 0 {
		return Gpt
	}
	return Mbr
}

type rawMBREntry struct {
	BootIndicator byte
	PartitionType byte
	StartingLBA   uint32
	SectorCount   uint32
}

// parseMBREntries reads the four primary partition entries out of a raw
// boot sector, grounded on the teacher's parseMBREntryFromBytes offsets.
func parseMBREntries(sector []byte) [partitionEntries]rawMBREntry {
	var out [partitionEntries]rawMBREntry
	for i := 0; i < partitionEntries; i++ {
		off := mbrPartitionTableOffset + i*partitionEntrySize
		e := sector[off : off+partitionEntrySize]
		out[i] = rawMBREntry{
			BootIndicator: e[0],
			PartitionType: e[4],
			StartingLBA:   binary.LittleEndian.Uint32(e[8:12]),
			SectorCount:   binary.LittleEndian.Uint32(e[12:16]),
		}
	}
	return out
}

// ScanDisk opens diskNumber through dev, classifies it, and builds its
// complete region model (primary list, logical list, extended container,
// free-space gaps). dev and fs are used to mount any recognized
// partitions found along the way.
func ScanDisk(ctx context.Context, dev BlockDevice, fs FilesystemInferrer, diskNumber int) (*Disk, error) {
	h, err := dev.Open(ctx, devicePath(diskNumber, 0))
	if err != nil {
		return nil, fmt.Errorf("scan disk %d: open: %w", diskNumber, err)
	}
	defer h.Close()

	geom, err := h.Geometry()
	if err != nil {
		return nil, fmt.Errorf("scan disk %d: geometry: %w", diskNumber, err)
	}

	media, err := h.MediaType()
	if err != nil {
		return nil, fmt.Errorf("scan disk %d: media type: %w", diskNumber, err)
	}
	if media != FixedMedia && media != RemovableMedia {
		return nil, fmt.Errorf("scan disk %d: unsupported media type", diskNumber)
	}

	scsi, err := h.ScsiAddress()
	if err != nil {
		return nil, fmt.Errorf("scan disk %d: scsi address: %w", diskNumber, err)
	}

	sector := make([]byte, geom.BytesPerSector)
	if err := h.ReadSector(0, sector); err != nil {
		return nil, fmt.Errorf("scan disk %d: read sector 0: %w", diskNumber, err)
	}

	disk := &Disk{
		DiskNumber:      diskNumber,
		BiosNumber:      -1,
		Geometry:        geom,
		Media:           media,
		Scsi:            scsi,
		SectorAlignment: uint64(geom.SectorsPerTrack),
		CylinderAlignment: uint64(geom.SectorsPerTrack) * uint64(geom.TracksPerCylinder),
		SectorCount:     geom.Cylinders * uint64(geom.TracksPerCylinder) * uint64(geom.SectorsPerTrack),
	}
	if disk.SectorAlignment == 0 {
		disk.SectorAlignment = 63
	}

	disk.Style = classifyDiskStyle(sector)
	disk.Checksum = computeMBRChecksum(sector)
	disk.Signature = binary.LittleEndian.Uint32(sector[mbrSignatureOffset:])

	if disk.Style == Uninitialized {
		disk.NewDisk = true
		insertDiskRegion(disk, newFreeRegion(0, disk.SectorCount), false)
		return disk, nil
	}

	if disk.Style != Mbr {
		return disk, nil
	}

	layout, err := h.ReadLayout()
	if err != nil {
		return nil, fmt.Errorf("scan disk %d: read layout: %w", diskNumber, err)
	}
	disk.LayoutBuffer = layout

	disk.SuperFloppy = isSuperFloppyLayout(layout)
	if disk.SuperFloppy && disk.Signature != 1 {
		log.Printf("scan disk %d: super-floppy disk has signature %#08x, expected 1", diskNumber, disk.Signature)
	}

	for i, entry := range layout.Partitions {
		if entry.PartitionType == PartitionEntryUnused {
			continue
		}
		logical := i >= partitionEntries
		if logical && isContainerType(entry.PartitionType) {
			continue
		}
		if err := addPartitionToDisk(ctx, disk, fs, dev, i, entry, logical); err != nil {
			log.Printf("scan disk %d: add partition at layout index %d: %v", diskNumber, i, err)
		}
	}

	scanForUnpartitionedDiskSpace(disk)

	return disk, nil
}

// isSuperFloppyLayout reports whether layout has exactly one entry whose
// starting offset and hidden-sector count are both zero.
func isSuperFloppyLayout(layout *LayoutBuffer) bool {
	count := 0
	for _, e := range layout.Partitions {
		if e.PartitionType == PartitionEntryUnused {
			continue
		}
		count++
		if e.StartingOffset != 0 || e.HiddenSectors != 0 {
			return false
		}
	}
	return count == 1
}

// IsSuperFloppy reports whether disk is a super-floppy, per the same rule
// applied during scanning: exactly one partitioned entry starting at
// offset 0 with zero hidden sectors.
func IsSuperFloppy(disk *Disk) bool {
	return disk.SuperFloppy
}

// addPartitionToDisk inserts a Region for one non-empty layout entry,
// wiring device name and mount state for recognized partition types, and
// tracking the disk's extended container.
func addPartitionToDisk(ctx context.Context, disk *Disk, fs FilesystemInferrer, dev BlockDevice, layoutIndex int, entry LayoutEntry, logical bool) error {
	region := &Region{
		StartSector:   bytesToSectors(entry.StartingOffset, disk.Geometry.BytesPerSector),
		SectorCount:   bytesToSectors(entry.PartitionLength, disk.Geometry.BytesPerSector),
		PartitionType: entry.PartitionType,
		BootIndicator: entry.BootIndicator,
		IsPartitioned: true,
		LayoutIndex:   layoutIndex,
	}

	if err := insertDiskRegion(disk, region, logical); err != nil {
		return err
	}

	if !logical && isContainerType(entry.PartitionType) && disk.Extended == nil {
		disk.Extended = region
		region.IsContainer = true
		return nil
	}

	partNumber := layoutIndex + 1
	region.OnDiskPartitionNumber = partNumber

	if recognizedPartitionTypes[entry.PartitionType] {
		region.Volume.DeviceName = devicePath(disk.DiskNumber, partNumber)
		if err := mountVolume(ctx, dev, fs, region, &entry.PartitionType); err != nil {
			log.Printf("mount partition %d on disk %d: %v", partNumber, disk.DiskNumber, err)
		}
	}

	return nil
}

// scanForUnpartitionedDiskSpace walks both of disk's region lists looking
// for gaps, inserting a free Region for each one wide enough to matter.
func scanForUnpartitionedDiskSpace(disk *Disk) {
	scanListForGaps(disk, false)
	if disk.Extended != nil {
		scanListForGaps(disk, true)
	}
}

func scanListForGaps(disk *Disk, logical bool) {
	list := listFor(disk, logical)

	var leadStart, spanEnd uint64
	if logical {
		leadStart = disk.Extended.StartSector + disk.SectorAlignment
		spanEnd = disk.Extended.End()
	} else {
		leadStart = maxU64(2048, disk.SectorAlignment)
		spanEnd = disk.SectorCount
	}

	cursor := leadStart
	// Work over a snapshot: we're inserting into *list as we go.
	existing := append([]*Region(nil), (*list)...)
	for _, r := range existing {
		if r.StartSector > cursor {
			gapLen := AlignDown(r.StartSector-cursor, disk.SectorAlignment)
			if gapLen >= disk.SectorAlignment {
				insertDiskRegion(disk, newFreeRegion(cursor, gapLen), logical)
			}
		}
		if r.End() > cursor {
			cursor = r.End()
		}
	}
	if spanEnd > cursor {
		gapLen := AlignDown(spanEnd-cursor, disk.SectorAlignment)
		if gapLen >= disk.SectorAlignment {
			insertDiskRegion(disk, newFreeRegion(cursor, gapLen), logical)
		}
	}
}

// ScanSystemDisks scans disks 0..count-1 and correlates each with the
// firmware map, returning a fully populated PartitionList.
func ScanSystemDisks(ctx context.Context, dev BlockDevice, fs FilesystemInferrer, store ConfigStore, mountReg MountRegistry, clock TimeSource, count int) (*PartitionList, error) {
	list := &PartitionList{Device: dev, FS: fs, Config: store, MountRegistry: mountReg, Clock: clock}

	firmwareDisks, err := EnumerateFirmwareDisks(store)
	if err != nil {
		log.Printf("enumerate firmware disks: %v", err)
	}
	list.FirmwareDisks = firmwareDisks

	for n := 0; n < count; n++ {
		disk, err := ScanDisk(ctx, dev, fs, n)
		if err != nil {
			log.Printf("scan disk %d: %v", n, err)
			continue
		}
		correlateFirmwareDisk(list, disk)
		list.Disks = append(list.Disks, disk)
	}

	return list, nil
}

// correlateFirmwareDisk finds the first unbound firmware disk whose
// (signature, checksum) pair matches disk, binds the two, marks disk as
// found in firmware, and records the firmware disk number as its
// BiosNumber. The firmware adapter and controller numbers are not copied
// onto disk.
func correlateFirmwareDisk(list *PartitionList, disk *Disk) {
	for _, fd := range list.FirmwareDisks {
		if fd.Disk != nil {
			continue
		}
		if fd.Signature == disk.Signature && fd.Checksum == disk.Checksum {
			fd.Disk = disk
			disk.FirmwareFound = true
			disk.BiosNumber = int(fd.DiskNumber)
			return
		}
	}
}
