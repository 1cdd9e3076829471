package partlist

import (
	"context"
	"time"
)

// BlockDevice is the raw I/O collaborator the core consumes instead of
// calling platform APIs directly. A reference implementation lives in
// deviceio_windows.go / deviceio_linux.go; tests use an in-memory fake.
type BlockDevice interface {
	// Open returns a handle for the given device path
	// (\Device\Harddisk<n>\Partition<p>), or an error.
	Open(ctx context.Context, path string) (DeviceHandle, error)
}

// DeviceHandle is an open block device or partition.
type DeviceHandle interface {
	Geometry() (Geometry, error)
	ScsiAddress() (ScsiAddress, error)
	MediaType() (MediaType, error)

	ReadSector(lba uint64, buf []byte) error

	ReadLayout() (*LayoutBuffer, error)
	WriteLayout(buf *LayoutBuffer) error

	LockVolume() error
	DismountVolume() error
	UnlockVolume() error

	Close() error
}

// FilesystemInferrer is the external InferFileSystem collaborator. The
// default implementation lives in filesystem_infer.go.
type FilesystemInferrer interface {
	InferFileSystem(h DeviceHandle) (name string, state FormatState, err error)
	VolumeLabel(h DeviceHandle) (string, error)
}

// ConfigStore is the hierarchical registry-like store the Firmware Map
// reads from.
type ConfigStore interface {
	// Subkeys returns the immediate child key names under key.
	Subkeys(key string) ([]string, error)
	// StringValue reads a string value under key.
	StringValue(key, name string) (string, error)
	// BinaryValue reads a binary value under key.
	BinaryValue(key, name string) ([]byte, error)
}

// MountRegistry is where the Writer records drive-letter-to-partition
// mappings (SYSTEM\MountedDevices on Windows).
type MountRegistry interface {
	SetBinaryValue(key, name string, value []byte) error
}

// TimeSource supplies the current time broken into fields, used by
// set_disk_signature.
type TimeSource interface {
	Now() time.Time
}

// systemClock is the default TimeSource.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
