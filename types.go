package partlist

import "fmt"

// MediaType distinguishes fixed disks from removable media, mirroring the
// kernel's STORAGE_MEDIA_TYPE classification at the level this editor
// cares about.
type MediaType int

const (
	FixedMedia MediaType = iota
	RemovableMedia
)

// DiskStyle classifies the partitioning scheme found on a disk.
type DiskStyle int

const (
	// Uninitialized means the disk has no valid MBR at all (sector 0
	// reads back all-zero); the scanner synthesizes a single free
	// region spanning the whole disk for it.
	Uninitialized DiskStyle = iota
	Raw
	Mbr
	Gpt
)

// FormatState is the volume classification produced by the mounter.
type FormatState int

const (
	Unformatted FormatState = iota
	UnformattedOrDamaged
	UnknownFormat
	Formatted
)

// TraversalFlags controls adjacent_region / adjacent_partition iteration.
type TraversalFlags int

const (
	Next TraversalFlags = 1 << iota
	Prev
	PartitionedOnly
	MbrPrimaryOnly
	MbrLogicalOnly
	MbrByOrder
)

// ScsiAddress identifies a disk's location on its bus.
type ScsiAddress struct {
	PortNumber   byte
	PathID       byte
	TargetID     byte
	Lun          byte
}

// Geometry is the physical disk geometry as reported by the block device.
type Geometry struct {
	Cylinders        uint64
	TracksPerCylinder uint32
	SectorsPerTrack  uint32
	BytesPerSector   uint32
}

// Volume is the filesystem view of a partitioned Region.
type Volume struct {
	DeviceName  string
	DriveLetter byte // 0 means unassigned
	Label       string
	Filesystem  string
	Format      FormatState
	New         bool
	NeedsCheck  bool
}

// Region is one contiguous range of sectors on a Disk: either a
// partitioned entry or a gap of free space.
type Region struct {
	Disk *Disk

	StartSector uint64
	SectorCount uint64

	PartitionType  byte
	BootIndicator  bool

	// OnDiskPartitionNumber is the sequential number (primaries then
	// logicals) assigned by update_disk_layout; CurrentPartitionNumber
	// is the number the kernel reported back after a successful write.
	OnDiskPartitionNumber int
	CurrentPartitionNumber int

	// LayoutIndex is this region's slot in Disk.LayoutBuffer, or -1 if
	// it has never been written.
	LayoutIndex int

	IsLogical     bool
	IsPartitioned bool
	IsContainer   bool
	New           bool
	AutoCreated   bool

	Volume Volume
}

// End returns the sector one past the region's last sector.
func (r *Region) End() uint64 {
	return r.StartSector + r.SectorCount
}

// LayoutEntry is one 16-byte MBR partition table slot, kept in the shape
// the SET_DRIVE_LAYOUT-equivalent IOCTL expects.
type LayoutEntry struct {
	BootIndicator     bool
	PartitionType     byte
	StartingOffset    uint64 // bytes
	PartitionLength   uint64 // bytes
	HiddenSectors     uint32
	PartitionNumber   uint32
	RewritePartition  bool
	Recognized        bool
}

// LayoutBuffer mirrors the kernel-facing partition table for a disk.
type LayoutBuffer struct {
	Signature uint32
	Partitions []LayoutEntry
}

// FirmwareDisk is a firmware-visible disk entry produced by the Firmware
// Map, matched to a scanned Disk by (signature, checksum).
type FirmwareDisk struct {
	AdapterNumber    uint32
	ControllerNumber uint32
	DiskNumber       uint32

	Signature uint32
	Checksum  uint32

	Geometry Geometry
	Int13    Int13DriveParameter

	Disk *Disk // nil until correlated by the scanner
}

// Int13DriveParameter is the legacy BIOS drive geometry associated with a
// firmware disk entry.
type Int13DriveParameter struct {
	DriveSelect byte
	MaxCylinders uint32
	MaxHeads     byte
	MaxSectors   byte
}

// Disk owns a single block device and its region model.
type Disk struct {
	BiosNumber      int // -1 if not found in the firmware map
	DiskNumber      int
	HwFixedDiskNumber int

	Geometry        Geometry
	SectorCount     uint64
	SectorAlignment uint64
	CylinderAlignment uint64

	Scsi      ScsiAddress
	Media     MediaType

	FirmwareFound bool

	Style      DiskStyle
	DriverName string

	Signature uint32
	Checksum  uint32

	LayoutBuffer *LayoutBuffer

	Dirty   bool
	NewDisk bool

	SuperFloppy bool

	Primary []*Region
	Logical []*Region

	Extended *Region // nil if no extended container
}

// DevicePath returns the block-device path for partition p on this disk
// (p == 0 means the whole disk).
func (d *Disk) DevicePath(partition int) string {
	return devicePath(d.DiskNumber, partition)
}

func devicePath(diskNumber, partition int) string {
	return fmt.Sprintf(`\Device\Harddisk%d\Partition%d`, diskNumber, partition)
}

// PartitionList is the top-level aggregate: an ordered set of disks, an
// ordered set of firmware disks, and the current system partition.
type PartitionList struct {
	Disks         []*Disk
	FirmwareDisks []*FirmwareDisk

	SystemPartition *Region

	// collaborators, injected by the caller (see deviceio.go)
	Device     BlockDevice
	FS         FilesystemInferrer
	Config     ConfigStore
	MountRegistry MountRegistry
	Clock      TimeSource
}
