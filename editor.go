package partlist

import "context"

// PartitionCreationChecks validates that region may host a new partition,
// without mutating any state. The four-entry limit applies to primary
// regions only.
func PartitionCreationChecks(region *Region) Status {
	disk := region.Disk
	if disk.Style == Gpt {
		return WarnPartition
	}
	if region.IsPartitioned {
		return NewPartition
	}
	if disk.SuperFloppy {
		return PartitionTableFull
	}
	if !region.IsLogical && countPartitioned(disk.Primary) >= 4 {
		return PartitionTableFull
	}
	return Success
}

// ExtendedPartitionCreationChecks additionally rejects a second extended
// container on the same disk.
func ExtendedPartitionCreationChecks(region *Region) Status {
	if s := PartitionCreationChecks(region); s != Success {
		return s
	}
	if region.Disk.Extended != nil {
		return OnlyOneExtended
	}
	return Success
}

func countPartitioned(list []*Region) int {
	n := 0
	for _, r := range list {
		if r.IsPartitioned {
			n++
		}
	}
	return n
}

// inferFatType picks a plausible MBR type byte for a freshly created
// plain partition, based on its size. This stands in for the original's
// RawFS-driven type inference: small regions get FAT16, larger ones
// FAT32.
func inferFatType(sizeBytes uint64) byte {
	const fat16Ceiling = 4 << 30 // 4 GiB
	if sizeBytes <= fat16Ceiling {
		return PartitionFat16
	}
	return PartitionFat32
}

// createPartitionCommon implements the shared body of create_partition
// and create_extended_partition: check, clamp, split, and stamp. extended
// selects the type byte and the add_logical_disk_space side effect.
func createPartitionCommon(list *PartitionList, region *Region, sizeBytes uint64, extended bool) (*Region, Status) {
	var status Status
	if extended {
		status = ExtendedPartitionCreationChecks(region)
	} else {
		status = PartitionCreationChecks(region)
	}
	if status != Success {
		return nil, status
	}

	disk := region.Disk
	regionBytes := sectorsToBytes(region.SectorCount, disk.Geometry.BytesPerSector)

	var requestedSectors uint64
	if sizeBytes == 0 || sizeBytes == regionBytes {
		requestedSectors = region.SectorCount
	} else {
		requestedSectors = bytesToSectors(sizeBytes, disk.Geometry.BytesPerSector)
		if requestedSectors == 0 {
			return nil, TransientIo
		}
		if requestedSectors > region.SectorCount {
			requestedSectors = region.SectorCount
		}
	}

	naturalEnd := region.End()
	newEnd := naturalEnd
	if requestedSectors < region.SectorCount {
		newEnd = AlignDown(region.StartSector+requestedSectors, disk.SectorAlignment)
	}

	if newEnd != naturalEnd {
		region.SectorCount = newEnd - region.StartSector
		trailing := newFreeRegion(newEnd, naturalEnd-newEnd)
		insertDiskRegion(disk, trailing, region.IsLogical)
	}

	region.IsPartitioned = true
	region.New = true
	region.BootIndicator = false
	region.Volume = Volume{New: true}

	if extended {
		region.PartitionType = extendedPartitionType(region.StartSector)
		region.IsContainer = true
		disk.Extended = region
		addLogicalDiskSpace(disk, region)
	} else {
		region.PartitionType = inferFatType(sectorsToBytes(region.SectorCount, disk.Geometry.BytesPerSector))
	}

	updateDiskLayout(disk)
	AssignDriveLetters(list)

	return region, Success
}

// CreatePartition creates a plain (FAT-family) partition in region,
// consuming sizeBytes of it (0 or the region's full size means "the
// whole region").
func CreatePartition(list *PartitionList, region *Region, sizeBytes uint64) (*Region, Status) {
	return createPartitionCommon(list, region, sizeBytes, false)
}

// CreateExtendedPartition creates the disk's extended container in
// region, and seeds its logical free space.
func CreateExtendedPartition(list *PartitionList, region *Region, sizeBytes uint64) (*Region, Status) {
	return createPartitionCommon(list, region, sizeBytes, true)
}

// addLogicalDiskSpace inserts the single free region that represents the
// usable space inside a freshly created extended container, leaving room
// for the EBR at the container's start.
func addLogicalDiskSpace(disk *Disk, container *Region) {
	start := container.StartSector + disk.SectorAlignment
	if start >= container.End() {
		return
	}
	insertDiskRegion(disk, newFreeRegion(start, container.End()-start), true)
}

// DeletePartition deletes region, merging it with adjacent free regions.
// Deleting the extended container dismounts and frees every logical
// region first.
func DeletePartition(ctx context.Context, list *PartitionList, region *Region) Status {
	if !region.IsPartitioned {
		return NewPartition
	}

	disk := region.Disk

	if disk.Extended == region {
		for _, logical := range append([]*Region(nil), disk.Logical...) {
			if logical.Volume.DeviceName != "" {
				_ = dismountVolume(ctx, list.Device, &logical.Volume)
			}
			removeDiskRegion(disk, logical)
		}
		disk.Extended = nil
	} else if region.Volume.DeviceName != "" {
		_ = dismountVolume(ctx, list.Device, &region.Volume)
	}

	if list.SystemPartition == region {
		list.SystemPartition = nil
	}

	mergeFreedRegion(disk, region)

	updateDiskLayout(disk)
	AssignDriveLetters(list)

	return Success
}

// mergeFreedRegion converts region to free space and merges it with a
// free neighbor on either side, per spec.md §4.5's four-way table.
func mergeFreedRegion(disk *Disk, region *Region) {
	prev := AdjacentRegion(disk, region, Prev|boundTraversal(region))
	next := AdjacentRegion(disk, region, Next|boundTraversal(region))

	prevFree := prev != nil && !prev.IsPartitioned
	nextFree := next != nil && !next.IsPartitioned

	switch {
	case prevFree && nextFree:
		prev.SectorCount += region.SectorCount + next.SectorCount
		removeDiskRegion(disk, region)
		removeDiskRegion(disk, next)
	case prevFree && !nextFree:
		prev.SectorCount += region.SectorCount
		removeDiskRegion(disk, region)
	case !prevFree && nextFree:
		next.StartSector = region.StartSector
		next.SectorCount += region.SectorCount
		removeDiskRegion(disk, region)
	default:
		*region = Region{
			Disk:          disk,
			StartSector:   region.StartSector,
			SectorCount:   region.SectorCount,
			IsLogical:     region.IsLogical,
			PartitionType: PartitionEntryUnused,
			LayoutIndex:   -1,
		}
	}
}

func boundTraversal(region *Region) TraversalFlags {
	if region.IsLogical {
		return MbrLogicalOnly
	}
	return MbrPrimaryOnly
}

// AssignDriveLetters reassigns drive letters to every partitioned,
// non-container region across all disks: first pass over every primary
// in disk order, second pass over every logical in disk order.
func AssignDriveLetters(list *PartitionList) {
	for _, d := range list.Disks {
		for _, r := range d.Primary {
			r.Volume.DriveLetter = 0
		}
		for _, r := range d.Logical {
			r.Volume.DriveLetter = 0
		}
	}

	letter := byte('C')

	assign := func(r *Region) bool {
		if r.IsContainer || !r.IsPartitioned {
			return true
		}
		if !recognizedPartitionTypes[r.PartitionType] && r.SectorCount == 0 {
			return true
		}
		if letter > 'Z' {
			return false
		}
		r.Volume.DriveLetter = letter
		letter++
		return true
	}

	for _, d := range list.Disks {
		for _, r := range d.Primary {
			if !assign(r) {
				return
			}
		}
	}
	for _, d := range list.Disks {
		for _, r := range d.Logical {
			if !assign(r) {
				return
			}
		}
	}
}

// updateDiskLayout rebuilds disk's layout buffer from its current region
// model and marks the disk dirty. The layout link-slot offset uses
// index-3, per the §9 open-question decision recorded in DESIGN.md.
func updateDiskLayout(disk *Disk) {
	logicalCount := len(disk.Logical)
	size := partitionEntries + partitionEntries*logicalCount
	buf := &LayoutBuffer{Signature: disk.Signature, Partitions: make([]LayoutEntry, size)}

	partNumber := 0
	for i, r := range disk.Primary {
		if i >= partitionEntries {
			break
		}
		if !r.IsPartitioned {
			continue
		}
		partNumber++
		buf.Partitions[i] = LayoutEntry{
			BootIndicator:    r.BootIndicator,
			PartitionType:    r.PartitionType,
			StartingOffset:   sectorsToBytes(r.StartSector, disk.Geometry.BytesPerSector),
			PartitionLength:  sectorsToBytes(r.SectorCount, disk.Geometry.BytesPerSector),
			HiddenSectors:    uint32(r.StartSector),
			Recognized:       recognizedPartitionTypes[r.PartitionType],
			RewritePartition: true,
		}
		r.OnDiskPartitionNumber = partNumber
		r.LayoutIndex = i
	}

	for i, r := range disk.Logical {
		idx := partitionEntries + i*partitionEntries
		if idx >= len(buf.Partitions) {
			break
		}
		partNumber++
		buf.Partitions[idx] = LayoutEntry{
			BootIndicator:    r.BootIndicator,
			PartitionType:    r.PartitionType,
			StartingOffset:   sectorsToBytes(r.StartSector, disk.Geometry.BytesPerSector),
			PartitionLength:  sectorsToBytes(r.SectorCount, disk.Geometry.BytesPerSector),
			HiddenSectors:    uint32(disk.SectorAlignment),
			Recognized:       recognizedPartitionTypes[r.PartitionType],
			RewritePartition: true,
		}
		r.OnDiskPartitionNumber = partNumber
		r.LayoutIndex = idx

		if i > 0 {
			linkSlot := idx - 3
			buf.Partitions[linkSlot] = LayoutEntry{
				StartingOffset:   sectorsToBytes(r.StartSector-disk.SectorAlignment, disk.Geometry.BytesPerSector),
				PartitionLength:  sectorsToBytes(r.StartSector+disk.SectorAlignment, disk.Geometry.BytesPerSector),
				PartitionType:    extendedPartitionType(r.StartSector),
				BootIndicator:    false,
				Recognized:       false,
				RewritePartition: true,
			}
		}
	}

	disk.LayoutBuffer = buf
	disk.Dirty = true
}

// SetActivePartition makes region the active (boot-indicator) partition
// on its disk, and the list's system partition if the disk is the system
// disk. Returns false if list is empty or region is nil.
func SetActivePartition(list *PartitionList, region *Region, oldActiveHint *Region) bool {
	if list == nil || len(list.Disks) == 0 || region == nil {
		return false
	}
	if list.SystemPartition == region {
		return true
	}

	disk := region.Disk
	current := findActivePartition(disk)
	if current == region && oldActiveHint == region {
		return true
	}

	if current != nil && current != region {
		current.BootIndicator = false
		markRewrite(disk, current)
	}

	region.BootIndicator = true
	markRewrite(disk, region)

	if SystemDisk(list) == disk {
		list.SystemPartition = region
	}

	return true
}

func findActivePartition(disk *Disk) *Region {
	for _, r := range disk.Primary {
		if r.IsPartitioned && r.BootIndicator {
			return r
		}
	}
	return nil
}

func markRewrite(disk *Disk, region *Region) {
	disk.Dirty = true
	if disk.LayoutBuffer != nil && region.LayoutIndex >= 0 && region.LayoutIndex < len(disk.LayoutBuffer.Partitions) {
		e := disk.LayoutBuffer.Partitions[region.LayoutIndex]
		e.RewritePartition = true
		e.BootIndicator = region.BootIndicator
		e.PartitionType = region.PartitionType
		disk.LayoutBuffer.Partitions[region.LayoutIndex] = e
	}
}

// IsPartitionActive reports whether region currently carries the boot
// indicator.
func IsPartitionActive(region *Region) bool {
	return region.IsPartitioned && region.BootIndicator
}

// isSupportedSystemPartition reports whether region may serve as the
// system partition: not a container, formatted with a writable
// filesystem (or unformatted, assumed RawFS-compatible), and not an IFS
// (NTFS) type.
func isSupportedSystemPartition(region *Region) bool {
	if region.IsContainer {
		return false
	}
	if region.PartitionType == PartitionIFS {
		return false
	}
	switch region.Volume.Format {
	case Unformatted:
		return true
	case Formatted:
		return writableFilesystems[region.Volume.Filesystem]
	default:
		return false
	}
}

// FindSupportedSystemPartition implements the three-stage search from
// spec.md §4.5: prefer the existing system partition if still supported,
// else search the system disk, else fall through to altDisk/altPart.
func FindSupportedSystemPartition(list *PartitionList, forceSelect bool, altDisk *Disk, altPart *Region) *Region {
	if list.SystemPartition != nil && isSupportedSystemPartition(list.SystemPartition) {
		return list.SystemPartition
	}

	sysDisk := SystemDisk(list)
	if sysDisk != nil {
		for _, r := range sysDisk.Primary {
			if r.IsPartitioned && isSupportedSystemPartition(r) {
				return r
			}
		}
		if countPartitioned(sysDisk.Primary) < 4 {
			for _, r := range sysDisk.Primary {
				if !r.IsPartitioned {
					return r
				}
			}
		}
	}

	if altDisk == nil || (!forceSelect && altDisk == sysDisk) {
		return altPart
	}

	if active := findActivePartition(altDisk); active != nil && isSupportedSystemPartition(active) {
		return active
	}

	if altDisk.NewDisk && len(altDisk.Primary) > 0 {
		first := altDisk.Primary[0]
		if !first.IsPartitioned || !first.BootIndicator {
			return first
		}
	}

	for _, r := range altDisk.Primary {
		if r.IsPartitioned || r.BootIndicator {
			return r
		}
	}

	if len(altDisk.Primary) > 0 {
		return altDisk.Primary[0]
	}

	return altPart
}

// SetMBRPartitionType updates region's on-disk partition type byte and
// marks its disk layout slot for rewrite. It is a core-exposed mutator
// spec.md §6 lists without describing in §4; grounded on the original's
// UpdatePartitionType.
func SetMBRPartitionType(region *Region, partitionType byte) Status {
	disk := region.Disk
	if disk.Style == Gpt {
		return WarnPartition
	}
	region.PartitionType = partitionType
	markRewrite(disk, region)
	return Success
}

// DestroyPartitionList tears down list, dismounting any volume still
// mounted before releasing it, mirroring the original's always-unmount-
// before-free behavior.
func DestroyPartitionList(ctx context.Context, list *PartitionList) {
	for _, d := range list.Disks {
		for _, r := range append(append([]*Region(nil), d.Primary...), d.Logical...) {
			if r.Volume.DeviceName != "" {
				_ = dismountVolume(ctx, list.Device, &r.Volume)
			}
		}
	}
	list.Disks = nil
	list.FirmwareDisks = nil
	list.SystemPartition = nil
}

// GetDiskByNumber, GetDiskByBiosNumber, GetDiskBySignature, and
// GetDiskBySCSI are the accessor family named in spec.md §6.
func GetDiskByNumber(list *PartitionList, diskNumber int) *Disk {
	for _, d := range list.Disks {
		if d.DiskNumber == diskNumber {
			return d
		}
	}
	return nil
}

func GetDiskByBiosNumber(list *PartitionList, biosNumber int) *Disk {
	for _, d := range list.Disks {
		if d.BiosNumber == biosNumber {
			return d
		}
	}
	return nil
}

func GetDiskBySignature(list *PartitionList, signature uint32) *Disk {
	for _, d := range list.Disks {
		if d.Signature == signature {
			return d
		}
	}
	return nil
}

func GetDiskBySCSI(list *PartitionList, addr ScsiAddress) *Disk {
	for _, d := range list.Disks {
		if d.Scsi == addr {
			return d
		}
	}
	return nil
}

// GetPartition returns the region on disk whose on-disk partition number
// matches partitionNumber.
func GetPartition(disk *Disk, partitionNumber int) *Region {
	for _, r := range disk.Primary {
		if r.OnDiskPartitionNumber == partitionNumber {
			return r
		}
	}
	for _, r := range disk.Logical {
		if r.OnDiskPartitionNumber == partitionNumber {
			return r
		}
	}
	return nil
}

// GetDiskOrPartition resolves a (disk number, partition number) pair,
// returning the disk and, if partNumber is non-nil, the matching region.
func GetDiskOrPartition(list *PartitionList, diskNo int, partNo *int) (*Disk, *Region) {
	disk := GetDiskByNumber(list, diskNo)
	if disk == nil || partNo == nil {
		return disk, nil
	}
	return disk, GetPartition(disk, *partNo)
}

// SelectPartition resolves and returns the region at (diskNo, partNo), or
// nil if either lookup fails.
func SelectPartition(list *PartitionList, diskNo, partNo int) *Region {
	_, region := GetDiskOrPartition(list, diskNo, &partNo)
	return region
}
