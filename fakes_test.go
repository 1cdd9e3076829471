package partlist

import (
	"context"
	"fmt"
	"time"
)

// fakeBlockDevice is the in-memory BlockDevice used by every test in this
// package, grounded on ostafen-digler's style of hand-rolled in-memory
// collaborator fakes rather than a mocking library.
type fakeBlockDevice struct {
	disks map[string]*fakeDisk
}

type fakeDisk struct {
	sectors        map[uint64][]byte
	bytesPerSector uint32
	geometry       Geometry
	media          MediaType
	layout         *LayoutBuffer
	locked         bool
	dismounted     bool
}

func newFakeBlockDevice() *fakeBlockDevice {
	return &fakeBlockDevice{disks: make(map[string]*fakeDisk)}
}

// addDisk registers a fake disk whose geometry is derived from
// sectorCount: whole 255x63 cylinders, at least one, so the reported
// size can differ from sectorCount. Storage is not allocated eagerly;
// ReadSector materializes a zero-filled sector lazily the first time
// it's touched.
func (f *fakeBlockDevice) addDisk(diskNumber int, sectorCount uint64, bytesPerSector uint32) *fakeDisk {
	cylinders := sectorCount / 63 / 255
	if cylinders == 0 {
		cylinders = 1
	}
	d := &fakeDisk{
		bytesPerSector: bytesPerSector,
		sectors:        make(map[uint64][]byte),
		geometry: Geometry{
			Cylinders:         cylinders,
			TracksPerCylinder: 255,
			SectorsPerTrack:   63,
			BytesPerSector:    bytesPerSector,
		},
		media: FixedMedia,
	}
	f.disks[devicePath(diskNumber, 0)] = d
	return d
}

func (d *fakeDisk) sector(lba uint64) []byte {
	s, ok := d.sectors[lba]
	if !ok {
		s = make([]byte, d.bytesPerSector)
		d.sectors[lba] = s
	}
	return s
}

func (f *fakeBlockDevice) Open(ctx context.Context, path string) (DeviceHandle, error) {
	d, ok := f.disks[normalizeWholeDiskPath(path)]
	if !ok {
		return nil, fmt.Errorf("fake device: no such path %s", path)
	}
	return &fakeHandle{disk: d}, nil
}

func normalizeWholeDiskPath(path string) string {
	var disk, partition int
	fmt.Sscanf(path, `\Device\Harddisk%d\Partition%d`, &disk, &partition)
	return devicePath(disk, 0)
}

type fakeHandle struct {
	disk *fakeDisk
}

func (h *fakeHandle) Geometry() (Geometry, error)       { return h.disk.geometry, nil }
func (h *fakeHandle) ScsiAddress() (ScsiAddress, error) { return ScsiAddress{}, nil }
func (h *fakeHandle) MediaType() (MediaType, error)     { return h.disk.media, nil }

func (h *fakeHandle) ReadSector(lba uint64, buf []byte) error {
	copy(buf, h.disk.sector(lba))
	return nil
}

func (h *fakeHandle) ReadLayout() (*LayoutBuffer, error) {
	if h.disk.layout == nil {
		return &LayoutBuffer{Partitions: make([]LayoutEntry, partitionEntries)}, nil
	}
	return h.disk.layout, nil
}

func (h *fakeHandle) WriteLayout(buf *LayoutBuffer) error {
	h.disk.layout = buf
	return nil
}

func (h *fakeHandle) LockVolume() error     { h.disk.locked = true; return nil }
func (h *fakeHandle) DismountVolume() error { h.disk.dismounted = true; return nil }
func (h *fakeHandle) UnlockVolume() error   { h.disk.locked = false; return nil }
func (h *fakeHandle) Close() error          { return nil }

// fakeFilesystemInferrer always reports RAW, matching an unformatted
// disk.
type fakeFilesystemInferrer struct{}

func (fakeFilesystemInferrer) InferFileSystem(h DeviceHandle) (string, FormatState, error) {
	return "RAW", Unformatted, nil
}

func (fakeFilesystemInferrer) VolumeLabel(h DeviceHandle) (string, error) {
	return "", nil
}

// fakeClock is a TimeSource returning a fixed, advancing sequence of
// times so setDiskSignature's uniqueness loop can be exercised
// deterministically.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
}
