//go:build linux

package partlist

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Linux ioctl numbers, grounded on the teacher's disks_linux.go sysfs
// enumeration style (no direct ioctl use there, so these are drawn from
// the standard kernel headers golang.org/x/sys/unix exposes).
const (
	blkGetSize64 = 0x80081272
	blkRRPart    = 0x125f
)

// LinuxBlockDevice is the reference BlockDevice implementation for Linux:
// it opens the raw device node and reads/writes the MBR sector directly,
// then asks the kernel to re-read the partition table with BLKRRPART.
type LinuxBlockDevice struct{}

func (LinuxBlockDevice) Open(ctx context.Context, path string) (DeviceHandle, error) {
	devPath := translatePath(path)
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open(devPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", devPath, err)
		}
	}
	return &linuxHandle{f: f}, nil
}

// translatePath maps the Windows-shaped \Device\Harddisk<n>\Partition<p>
// path spec.md uses into a Linux device node. Partition0 maps to the
// whole disk; PartitionN maps to the disk's N-th partition node.
func translatePath(path string) string {
	var disk, partition int
	fmt.Sscanf(path, `\Device\Harddisk%d\Partition%d`, &disk, &partition)
	base := fmt.Sprintf("/dev/sd%c", 'a'+disk)
	if partition == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, partition)
}

type linuxHandle struct {
	f *os.File
}

func (h *linuxHandle) Geometry() (Geometry, error) {
	// HDIO_GETGEO's CHS fields are legacy and unreliable on modern large
	// disks; derive a pseudo-geometry from the reported size instead.
	size, err := h.sizeBytes()
	if err != nil {
		return Geometry{}, err
	}

	const bytesPerSector = BytesPerSectorDefault
	const sectorsPerTrack = 63
	const tracksPerCylinder = 255
	totalSectors := size / bytesPerSector
	cylinders := totalSectors / (sectorsPerTrack * tracksPerCylinder)

	return Geometry{
		Cylinders:         cylinders,
		TracksPerCylinder: tracksPerCylinder,
		SectorsPerTrack:   sectorsPerTrack,
		BytesPerSector:    bytesPerSector,
	}, nil
}

func (h *linuxHandle) sizeBytes() (uint64, error) {
	size, err := unix.IoctlGetInt(int(h.f.Fd()), blkGetSize64)
	if err != nil {
		st, statErr := h.f.Stat()
		if statErr != nil {
			return 0, fmt.Errorf("get device size: %w", err)
		}
		return uint64(st.Size()), nil
	}
	return uint64(size), nil
}

func (h *linuxHandle) ScsiAddress() (ScsiAddress, error) {
	return ScsiAddress{}, nil
}

func (h *linuxHandle) MediaType() (MediaType, error) {
	return FixedMedia, nil
}

func (h *linuxHandle) ReadSector(lba uint64, buf []byte) error {
	n, err := h.f.ReadAt(buf, int64(lba)*int64(len(buf)))
	if err != nil {
		return fmt.Errorf("read sector %d: %w", lba, err)
	}
	if n != len(buf) {
		return fmt.Errorf("read sector %d: short read %d/%d bytes", lba, n, len(buf))
	}
	return nil
}

func (h *linuxHandle) ReadLayout() (*LayoutBuffer, error) {
	sector := make([]byte, BytesPerSectorDefault)
	if err := h.ReadSector(0, sector); err != nil {
		return nil, err
	}
	buf := &LayoutBuffer{Signature: binary.LittleEndian.Uint32(sector[mbrSignatureOffset:])}
	entries := parseMBREntries(sector)
	buf.Partitions = make([]LayoutEntry, partitionEntries)
	for i, e := range entries {
		buf.Partitions[i] = LayoutEntry{
			BootIndicator:   e.BootIndicator != 0,
			PartitionType:   e.PartitionType,
			StartingOffset:  uint64(e.StartingLBA) * BytesPerSectorDefault,
			PartitionLength: uint64(e.SectorCount) * BytesPerSectorDefault,
			HiddenSectors:   e.StartingLBA,
		}
	}
	return buf, nil
}

func (h *linuxHandle) WriteLayout(buf *LayoutBuffer) error {
	sector := make([]byte, BytesPerSectorDefault)
	binary.LittleEndian.PutUint32(sector[mbrSignatureOffset:], buf.Signature)
	binary.LittleEndian.PutUint16(sector[mbrMagicOffset:], MBRSignatureMagic)

	for i := 0; i < partitionEntries && i < len(buf.Partitions); i++ {
		e := buf.Partitions[i]
		off := mbrPartitionTableOffset + i*partitionEntrySize
		if e.BootIndicator {
			sector[off] = 0x80
		}
		sector[off+4] = e.PartitionType
		binary.LittleEndian.PutUint32(sector[off+8:off+12], uint32(e.StartingOffset/BytesPerSectorDefault))
		binary.LittleEndian.PutUint32(sector[off+12:off+16], uint32(e.PartitionLength/BytesPerSectorDefault))
	}

	n, err := h.f.WriteAt(sector, 0)
	if err != nil {
		return fmt.Errorf("write mbr sector: %w", err)
	}
	if n != len(sector) {
		return fmt.Errorf("write mbr sector: short write %d/%d bytes", n, len(sector))
	}

	_ = unix.IoctlSetInt(int(h.f.Fd()), blkRRPart, 0)
	return nil
}

func (h *linuxHandle) LockVolume() error      { return nil }
func (h *linuxHandle) DismountVolume() error  { return unix.IoctlSetInt(int(h.f.Fd()), blkRRPart, 0) }
func (h *linuxHandle) UnlockVolume() error    { return nil }

func (h *linuxHandle) Close() error { return h.f.Close() }
