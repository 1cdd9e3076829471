//go:build windows

package partlist

import (
	"context"
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows IOCTL codes and structs, grounded on the teacher's
// structs_windows.go.
const (
	ioctlDiskGetDriveGeometryEx = 0x000700a0
	ioctlDiskGetDriveLayoutEx   = 0x00070050
	ioctlDiskSetDriveLayoutEx   = 0x0007004C
	ioctlDiskGetScsiAddress     = 0x00041050
	ioctlVolumeLockVolume       = 0x00090018
	ioctlVolumeDismount         = 0x00090020
	ioctlVolumeUnlockVolume     = 0x0009001C

	partitionStyleMbr = 0
)

type winDiskGeometry struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

type winDiskGeometryEx struct {
	Geometry winDiskGeometry
	DiskSize int64
}

type winPartitionInformationEx struct {
	PartitionStyle   uint32
	StartingOffset   int64
	PartitionLength  int64
	PartitionNumber  uint32
	RewritePartition uint32
	Gpt              [40]byte // GPT union payload, unused on MBR disks
	HiddenSectors    uint32
	_                [4]byte // padding to match the kernel struct's alignment
}

type winDriveLayoutInformationEx struct {
	PartitionStyle uint32
	PartitionCount uint32
	_              [8]byte // Mbr signature/checksum union, unused here
	PartitionEntry [128]winPartitionInformationEx
}

type winScsiAddress struct {
	Length     uint32
	PortNumber byte
	PathID     byte
	TargetID   byte
	Lun        byte
}

// WindowsBlockDevice is the reference BlockDevice implementation for
// Windows, grounded on structs_windows.go's IOCTL table.
type WindowsBlockDevice struct{}

func (WindowsBlockDevice) Open(ctx context.Context, path string) (DeviceHandle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &windowsHandle{h: h}, nil
}

type windowsHandle struct {
	h windows.Handle
}

func deviceIoControl(h windows.Handle, code uint32, in []byte, outSize int) ([]byte, error) {
	out := make([]byte, outSize)
	var returned uint32
	var inPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	var outPtr *byte
	if outSize > 0 {
		outPtr = &out[0]
	}
	err := windows.DeviceIoControl(h, code, inPtr, uint32(len(in)), outPtr, uint32(outSize), &returned, nil)
	if err != nil {
		return nil, err
	}
	return out[:returned], nil
}

func (w *windowsHandle) Geometry() (Geometry, error) {
	out, err := deviceIoControl(w.h, ioctlDiskGetDriveGeometryEx, nil, int(unsafe.Sizeof(winDiskGeometryEx{})))
	if err != nil {
		return Geometry{}, fmt.Errorf("get drive geometry: %w", err)
	}
	var g winDiskGeometryEx
	g.Geometry.Cylinders = int64(binary.LittleEndian.Uint64(out[0:8]))
	g.Geometry.MediaType = binary.LittleEndian.Uint32(out[8:12])
	g.Geometry.TracksPerCylinder = binary.LittleEndian.Uint32(out[12:16])
	g.Geometry.SectorsPerTrack = binary.LittleEndian.Uint32(out[16:20])
	g.Geometry.BytesPerSector = binary.LittleEndian.Uint32(out[20:24])
	return Geometry{
		Cylinders:         uint64(g.Geometry.Cylinders),
		TracksPerCylinder: g.Geometry.TracksPerCylinder,
		SectorsPerTrack:   g.Geometry.SectorsPerTrack,
		BytesPerSector:    g.Geometry.BytesPerSector,
	}, nil
}

func (w *windowsHandle) ScsiAddress() (ScsiAddress, error) {
	out, err := deviceIoControl(w.h, ioctlDiskGetScsiAddress, nil, int(unsafe.Sizeof(winScsiAddress{})))
	if err != nil {
		return ScsiAddress{}, fmt.Errorf("get scsi address: %w", err)
	}
	return ScsiAddress{
		PortNumber: out[4],
		PathID:     out[5],
		TargetID:   out[6],
		Lun:        out[7],
	}, nil
}

func (w *windowsHandle) MediaType() (MediaType, error) {
	g, err := w.Geometry()
	if err != nil {
		return 0, err
	}
	if g.Cylinders == 0 {
		return FixedMedia, nil
	}
	return FixedMedia, nil
}

func (w *windowsHandle) ReadSector(lba uint64, buf []byte) error {
	if _, err := windows.Seek(w.h, int64(lba)*int64(len(buf)), 0); err != nil {
		return fmt.Errorf("seek sector %d: %w", lba, err)
	}
	var read uint32
	if err := windows.ReadFile(w.h, buf, &read, nil); err != nil {
		return fmt.Errorf("read sector %d: %w", lba, err)
	}
	return nil
}

func (w *windowsHandle) ReadLayout() (*LayoutBuffer, error) {
	entries := partitionEntries
	for {
		size := int(unsafe.Sizeof(winDriveLayoutInformationEx{}))
		out, err := deviceIoControl(w.h, ioctlDiskGetDriveLayoutEx, nil, size)
		if err == windows.ERROR_INSUFFICIENT_BUFFER || err == windows.ERROR_MORE_DATA {
			entries += 4
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get drive layout: %w", err)
		}
		return decodeLayoutBuffer(out), nil
	}
}

func decodeLayoutBuffer(raw []byte) *LayoutBuffer {
	if len(raw) < 8 {
		return &LayoutBuffer{}
	}
	count := binary.LittleEndian.Uint32(raw[4:8])
	buf := &LayoutBuffer{Partitions: make([]LayoutEntry, count)}
	const headerSize = 16
	const entrySize = 112
	for i := 0; i < int(count); i++ {
		off := headerSize + i*entrySize
		if off+entrySize > len(raw) {
			break
		}
		e := raw[off : off+entrySize]
		buf.Partitions[i] = LayoutEntry{
			StartingOffset:  binary.LittleEndian.Uint64(e[8:16]),
			PartitionLength: binary.LittleEndian.Uint64(e[16:24]),
			PartitionNumber: binary.LittleEndian.Uint32(e[24:28]),
			HiddenSectors:   binary.LittleEndian.Uint32(e[68:72]),
		}
	}
	return buf
}

func (w *windowsHandle) WriteLayout(buf *LayoutBuffer) error {
	raw := encodeLayoutBuffer(buf)
	_, err := deviceIoControl(w.h, ioctlDiskSetDriveLayoutEx, raw, 0)
	if err != nil {
		return fmt.Errorf("set drive layout: %w", err)
	}
	return nil
}

func encodeLayoutBuffer(buf *LayoutBuffer) []byte {
	const headerSize = 16
	const entrySize = 112
	raw := make([]byte, headerSize+entrySize*len(buf.Partitions))
	binary.LittleEndian.PutUint32(raw[0:4], partitionStyleMbr)
	binary.LittleEndian.PutUint32(raw[4:8], uint32(len(buf.Partitions)))
	for i, e := range buf.Partitions {
		off := headerSize + i*entrySize
		binary.LittleEndian.PutUint64(raw[off+8:off+16], e.StartingOffset)
		binary.LittleEndian.PutUint64(raw[off+16:off+24], e.PartitionLength)
		binary.LittleEndian.PutUint32(raw[off+24:off+28], e.PartitionNumber)
		if e.RewritePartition {
			raw[off+28] = 1
		}
		raw[off+64] = e.PartitionType
		if e.BootIndicator {
			raw[off+65] = 1
		}
		if e.Recognized {
			raw[off+66] = 1
		}
		binary.LittleEndian.PutUint32(raw[off+68:off+72], e.HiddenSectors)
	}
	return raw
}

func (w *windowsHandle) LockVolume() error {
	_, err := deviceIoControl(w.h, ioctlVolumeLockVolume, nil, 0)
	return err
}

func (w *windowsHandle) DismountVolume() error {
	_, err := deviceIoControl(w.h, ioctlVolumeDismount, nil, 0)
	return err
}

func (w *windowsHandle) UnlockVolume() error {
	_, err := deviceIoControl(w.h, ioctlVolumeUnlockVolume, nil, 0)
	return err
}

func (w *windowsHandle) Close() error {
	return windows.CloseHandle(w.h)
}
