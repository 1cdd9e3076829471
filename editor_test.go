package partlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshDisk() (*PartitionList, *Disk) {
	dev := newFakeBlockDevice()
	d := testDisk()
	d.SectorCount = 2048 + AlignDown((10<<30)/512-2048, d.SectorAlignment) // 10 GiB disk, 512 B/sector, alignment-clean
	free := newFreeRegion(2048, d.SectorCount-2048)
	insertDiskRegion(d, free, false)

	list := &PartitionList{Disks: []*Disk{d}, Device: dev, FS: fakeFilesystemInferrer{}}
	return list, d
}

func TestCreatePartitionSplitsFreeRegion(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	const fourGiB = 4 << 30
	region, status := CreatePartition(list, free, fourGiB)
	require.Equal(t, Success, status)
	require.NotNil(t, region)

	assert.True(t, region.IsPartitioned)
	assert.Equal(t, byte('C'), region.Volume.DriveLetter)
	assert.Len(t, d.Primary, 2, "expected the consumed region plus a trailing free region")

	trailing := d.Primary[1]
	assert.False(t, trailing.IsPartitioned)
	assert.Equal(t, region.End(), trailing.StartSector)
}

func TestCreatePartitionWholeRegionLeavesNoTrailer(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	region, status := CreatePartition(list, free, 0)
	require.Equal(t, Success, status)
	require.Len(t, d.Primary, 1)
	assert.Same(t, free, region)
	assert.True(t, region.IsPartitioned)
}

func TestCreatePartitionZeroSectorRequestFails(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	_, status := CreatePartition(list, free, 1)
	assert.Equal(t, NewPartition, status)
	assert.False(t, d.Primary[0].IsPartitioned)
}

func TestPartitionCreationChecksGPTDisk(t *testing.T) {
	list, d := freshDisk()
	d.Style = Gpt
	free := d.Primary[0]

	_, status := CreatePartition(list, free, 0)
	assert.Equal(t, WarnPartition, status)
}

func TestPartitionCreationChecksSuperFloppy(t *testing.T) {
	list, d := freshDisk()
	d.SuperFloppy = true
	free := d.Primary[0]

	_, status := CreatePartition(list, free, 0)
	assert.Equal(t, PartitionTableFull, status)
}

func TestPartitionCreationChecksPrimaryFull(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]
	free.SectorCount = 4
	for i := 0; i < 4; i++ {
		d.Primary = append(d.Primary, &Region{Disk: d, IsPartitioned: true, StartSector: uint64(i) + 10_000_000})
	}

	_, status := CreatePartition(list, free, 0)
	assert.Equal(t, PartitionTableFull, status)
}

func TestCreateExtendedPartitionSeedsLogicalFreeSpace(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	container, status := CreateExtendedPartition(list, free, 0)
	require.Equal(t, Success, status)
	assert.Same(t, container, d.Extended)
	require.Len(t, d.Logical, 1)
	assert.False(t, d.Logical[0].IsPartitioned)
	assert.Equal(t, container.StartSector+d.SectorAlignment, d.Logical[0].StartSector)
}

func TestOnlyOneExtendedPartition(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	_, status := CreateExtendedPartition(list, free, 4<<30)
	require.Equal(t, Success, status)

	trailing := d.Primary[1]
	_, status = CreateExtendedPartition(list, trailing, 0)
	assert.Equal(t, OnlyOneExtended, status)
}

func TestDeletePartitionMergesWithFollowingFreeRegion(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]
	start, total := free.StartSector, free.SectorCount

	region, status := CreatePartition(list, free, 4<<30)
	require.Equal(t, Success, status)

	status = DeletePartition(context.Background(), list, region)
	require.Equal(t, Success, status)

	require.Len(t, d.Primary, 1)
	assert.Equal(t, start, d.Primary[0].StartSector)
	assert.Equal(t, total, d.Primary[0].SectorCount)
	assert.False(t, d.Primary[0].IsPartitioned)
}

func TestDeleteExtendedPartitionFreesAllLogicals(t *testing.T) {
	list, d := freshDisk()
	free := d.Primary[0]

	container, status := CreateExtendedPartition(list, free, 0)
	require.Equal(t, Success, status)
	require.Len(t, d.Logical, 1)

	logicalFree := d.Logical[0]
	_, status = CreatePartition(list, logicalFree, 1<<30)
	require.Equal(t, Success, status)
	require.Len(t, d.Logical, 2)

	status = DeletePartition(context.Background(), list, container)
	require.Equal(t, Success, status)
	assert.Nil(t, d.Extended)
	assert.Len(t, d.Logical, 0)
}

func TestAssignDriveLettersDeterministicAcrossDisks(t *testing.T) {
	d0 := testDisk()
	d0.DiskNumber = 0
	p0 := &Region{Disk: d0, IsPartitioned: true, PartitionType: PartitionFat16, StartSector: 0, SectorCount: 100}
	insertDiskRegion(d0, p0, false)

	d1 := testDisk()
	d1.DiskNumber = 1
	p1 := &Region{Disk: d1, IsPartitioned: true, PartitionType: PartitionFat16, StartSector: 0, SectorCount: 100}
	insertDiskRegion(d1, p1, false)

	list := &PartitionList{Disks: []*Disk{d0, d1}}
	AssignDriveLetters(list)

	assert.Equal(t, byte('C'), p0.Volume.DriveLetter)
	assert.Equal(t, byte('D'), p1.Volume.DriveLetter)
}

func TestFindSupportedSystemPartitionFallsBackToAltWhenNTFS(t *testing.T) {
	sysDisk := testDisk()
	sysDisk.DiskNumber = 0
	ntfs := &Region{Disk: sysDisk, IsPartitioned: true, PartitionType: PartitionIFS,
		Volume: Volume{Format: Formatted, Filesystem: "NTFS"}}
	insertDiskRegion(sysDisk, ntfs, false)

	altDisk := testDisk()
	altDisk.DiskNumber = 1
	altPart := &Region{Disk: altDisk, IsPartitioned: true, PartitionType: PartitionFat32,
		Volume: Volume{Format: Formatted, Filesystem: "FAT32"}}
	insertDiskRegion(altDisk, altPart, false)

	list := &PartitionList{
		Disks:         []*Disk{sysDisk, altDisk},
		FirmwareDisks: []*FirmwareDisk{{Disk: sysDisk}},
	}

	got := FindSupportedSystemPartition(list, true, altDisk, altPart)
	assert.Same(t, altPart, got)
}

func TestSetMBRPartitionTypeRejectsGPT(t *testing.T) {
	d := testDisk()
	d.Style = Gpt
	r := &Region{Disk: d, IsPartitioned: true}
	insertDiskRegion(d, r, false)

	status := SetMBRPartitionType(r, PartitionFat32)
	assert.Equal(t, WarnPartition, status)
}

func TestSetMBRPartitionTypeUpdatesType(t *testing.T) {
	d := testDisk()
	r := &Region{Disk: d, IsPartitioned: true, LayoutIndex: -1}
	insertDiskRegion(d, r, false)

	status := SetMBRPartitionType(r, PartitionFat32)
	assert.Equal(t, Success, status)
	assert.Equal(t, PartitionFat32, r.PartitionType)
	assert.True(t, d.Dirty)
}
