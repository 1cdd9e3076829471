package partlist

import "fmt"

// listFor returns a pointer to disk's primary or logical region list.
func listFor(disk *Disk, logical bool) *[]*Region {
	if logical {
		return &disk.Logical
	}
	return &disk.Primary
}

// regionsOverlap reports whether a and b share any sector, treating an
// empty region (start=0, count=0) as a sentinel that never overlaps.
func regionsOverlap(a, b *Region) bool {
	if a.SectorCount == 0 && a.StartSector == 0 {
		return false
	}
	if b.SectorCount == 0 && b.StartSector == 0 {
		return false
	}
	return maxU64(a.StartSector, b.StartSector) < minU64(a.End(), b.End())
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// insertDiskRegion inserts region into disk's primary or logical list at
// its sorted position, rejecting any overlap with an existing region.
func insertDiskRegion(disk *Disk, region *Region, logical bool) error {
	list := listFor(disk, logical)
	for _, existing := range *list {
		if existing == region {
			continue
		}
		if regionsOverlap(existing, region) {
			return fmt.Errorf("insert region [%d,%d): overlaps existing region [%d,%d)",
				region.StartSector, region.End(), existing.StartSector, existing.End())
		}
	}

	region.Disk = disk
	region.IsLogical = logical

	idx := 0
	for idx < len(*list) && (*list)[idx].StartSector < region.StartSector {
		idx++
	}
	*list = append(*list, nil)
	copy((*list)[idx+1:], (*list)[idx:])
	(*list)[idx] = region
	return nil
}

// removeDiskRegion deletes region from disk's primary or logical list.
func removeDiskRegion(disk *Disk, region *Region) {
	list := listFor(disk, region.IsLogical)
	for i, r := range *list {
		if r == region {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// AdjacentRegion yields the next or previous region on disk relative to
// current (nil means "start of the traversal"), honoring flags. It is the
// single traversal primitive all higher-level iteration builds on.
func AdjacentRegion(disk *Disk, current *Region, flags TraversalFlags) *Region {
	if disk == nil {
		return nil
	}

	seq := buildSequence(disk, flags)
	if len(seq) == 0 {
		return nil
	}

	forward := flags&Prev == 0

	if current == nil {
		if forward {
			return firstMatching(seq, 0, 1, flags)
		}
		return firstMatching(seq, len(seq)-1, -1, flags)
	}

	pos := -1
	for i, r := range seq {
		if r == current {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil
	}
	if forward {
		return firstMatching(seq, pos+1, 1, flags)
	}
	return firstMatching(seq, pos-1, -1, flags)
}

func firstMatching(seq []*Region, start, step int, flags TraversalFlags) *Region {
	for i := start; i >= 0 && i < len(seq); i += step {
		r := seq[i]
		if flags&PartitionedOnly != 0 && !r.IsPartitioned {
			continue
		}
		return r
	}
	return nil
}

// buildSequence materializes the disk's regions in the order the
// requested flags describe: by-type (all primaries, then all logicals)
// unless MbrByOrder asks for the extended container to be replaced
// in-place by its logical chain.
func buildSequence(disk *Disk, flags TraversalFlags) []*Region {
	switch {
	case flags&MbrPrimaryOnly != 0:
		return append([]*Region(nil), disk.Primary...)
	case flags&MbrLogicalOnly != 0:
		return append([]*Region(nil), disk.Logical...)
	case flags&MbrByOrder != 0:
		seq := make([]*Region, 0, len(disk.Primary)+len(disk.Logical))
		for _, p := range disk.Primary {
			if disk.Extended != nil && p == disk.Extended {
				seq = append(seq, disk.Logical...)
				continue
			}
			seq = append(seq, p)
		}
		return seq
	default:
		seq := make([]*Region, 0, len(disk.Primary)+len(disk.Logical))
		seq = append(seq, disk.Primary...)
		seq = append(seq, disk.Logical...)
		return seq
	}
}

// AdjacentPartition extends AdjacentRegion across every disk in list: when
// a disk's sequence is exhausted, traversal resumes on the next (or
// previous) disk. If current and disk are both nil, it returns nil.
func AdjacentPartition(list *PartitionList, disk *Disk, current *Region, flags TraversalFlags) *Region {
	if current == nil && disk == nil {
		return nil
	}

	if current != nil && disk == nil {
		disk = current.Disk
	}

	if r := AdjacentRegion(disk, current, flags); r != nil {
		return r
	}

	forward := flags&Prev == 0
	idx := diskIndex(list, disk)
	if idx == -1 {
		return nil
	}

	if forward {
		for i := idx + 1; i < len(list.Disks); i++ {
			if r := AdjacentRegion(list.Disks[i], nil, flags); r != nil {
				return r
			}
		}
		return nil
	}

	for i := idx - 1; i >= 0; i-- {
		if r := AdjacentRegion(list.Disks[i], nil, flags); r != nil {
			return r
		}
	}
	return nil
}

func diskIndex(list *PartitionList, disk *Disk) int {
	for i, d := range list.Disks {
		if d == disk {
			return i
		}
	}
	return -1
}

// newFreeRegion builds a free, unpartitioned region spanning
// [start, start+count).
func newFreeRegion(start, count uint64) *Region {
	return &Region{
		StartSector:   start,
		SectorCount:   count,
		PartitionType: PartitionEntryUnused,
		IsPartitioned: false,
		LayoutIndex:   -1,
	}
}
