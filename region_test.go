package partlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDisk() *Disk {
	return &Disk{
		DiskNumber:      0,
		SectorAlignment: 63,
		SectorCount:     1_000_000,
		Geometry:        Geometry{BytesPerSector: 512},
	}
}

func TestInsertDiskRegionRejectsOverlap(t *testing.T) {
	d := testDisk()
	require.NoError(t, insertDiskRegion(d, newFreeRegion(0, 1000), false))
	err := insertDiskRegion(d, newFreeRegion(500, 1000), false)
	assert.Error(t, err)
}

func TestInsertDiskRegionSortedOrder(t *testing.T) {
	d := testDisk()
	require.NoError(t, insertDiskRegion(d, newFreeRegion(2000, 1000), false))
	require.NoError(t, insertDiskRegion(d, newFreeRegion(0, 1000), false))
	require.NoError(t, insertDiskRegion(d, newFreeRegion(1000, 1000), false))

	require.Len(t, d.Primary, 3)
	assert.Equal(t, uint64(0), d.Primary[0].StartSector)
	assert.Equal(t, uint64(1000), d.Primary[1].StartSector)
	assert.Equal(t, uint64(2000), d.Primary[2].StartSector)
}

func TestAdjacentRegionByType(t *testing.T) {
	d := testDisk()
	p1 := newFreeRegion(0, 100)
	p2 := &Region{StartSector: 100, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d, p1, false)
	insertDiskRegion(d, p2, false)

	l1 := &Region{StartSector: 1000, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d, l1, true)

	first := AdjacentRegion(d, nil, 0)
	assert.Same(t, p1, first)

	second := AdjacentRegion(d, first, Next)
	assert.Same(t, p2, second)

	third := AdjacentRegion(d, second, Next)
	assert.Same(t, l1, third)

	assert.Nil(t, AdjacentRegion(d, l1, Next))
}

func TestAdjacentRegionPartitionedOnly(t *testing.T) {
	d := testDisk()
	free := newFreeRegion(0, 100)
	used := &Region{StartSector: 100, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d, free, false)
	insertDiskRegion(d, used, false)

	first := AdjacentRegion(d, nil, PartitionedOnly)
	assert.Same(t, used, first)
}

func TestAdjacentRegionByOrderSubstitutesExtended(t *testing.T) {
	d := testDisk()
	container := &Region{StartSector: 0, SectorCount: 1000, IsPartitioned: true, IsContainer: true}
	insertDiskRegion(d, container, false)
	d.Extended = container

	primaryAfter := &Region{StartSector: 2000, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d, primaryAfter, false)

	logical := &Region{StartSector: 100, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d, logical, true)

	seq := buildSequence(d, MbrByOrder)
	require.Len(t, seq, 2)
	assert.Same(t, logical, seq[0])
	assert.Same(t, primaryAfter, seq[1])
}

func TestAdjacentPartitionCrossesDisks(t *testing.T) {
	d1 := testDisk()
	d1.DiskNumber = 0
	r1 := &Region{StartSector: 0, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d1, r1, false)

	d2 := testDisk()
	d2.DiskNumber = 1
	r2 := &Region{StartSector: 0, SectorCount: 100, IsPartitioned: true}
	insertDiskRegion(d2, r2, false)

	list := &PartitionList{Disks: []*Disk{d1, d2}}

	next := AdjacentPartition(list, d1, r1, 0)
	assert.Same(t, r2, next)

	assert.Nil(t, AdjacentPartition(list, nil, nil, 0))
}
