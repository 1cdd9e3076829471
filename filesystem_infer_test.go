package partlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferFileSystemMatchesSignatures(t *testing.T) {
	cases := []struct {
		name   string
		offset int
		sig    string
	}{
		{"NTFS", 3, "NTFS"},
		{"BTRFS", 0x40, "_BHRfS_M"},
		{"FAT32", 0x52, "FAT32"},
		{"FAT", 0x36, "FAT1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := newFakeBlockDevice()
			fd := dev.addDisk(0, 1000, 512)
			sector := fd.sector(0)
			copy(sector[tc.offset:], tc.sig)

			h, err := dev.Open(context.Background(), devicePath(0, 1))
			require.NoError(t, err)
			defer h.Close()

			name, state, err := DefaultFilesystemInferrer{}.InferFileSystem(h)
			require.NoError(t, err)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, Formatted, state)
		})
	}
}

func TestInferFileSystemUnrecognizedIsRaw(t *testing.T) {
	dev := newFakeBlockDevice()
	dev.addDisk(0, 1000, 512)

	h, err := dev.Open(context.Background(), devicePath(0, 1))
	require.NoError(t, err)
	defer h.Close()

	name, state, err := DefaultFilesystemInferrer{}.InferFileSystem(h)
	require.NoError(t, err)
	assert.Equal(t, "RAW", name)
	assert.Equal(t, Unformatted, state)
}

func TestVolumeLabelStopsAtNul(t *testing.T) {
	dev := newFakeBlockDevice()
	fd := dev.addDisk(0, 1000, 512)
	sector := fd.sector(0)
	label := "MYDATA"
	for i, r := range label {
		sector[0x2B+i*2] = byte(r)
	}

	h, err := dev.Open(context.Background(), devicePath(0, 1))
	require.NoError(t, err)
	defer h.Close()

	got, err := DefaultFilesystemInferrer{}.VolumeLabel(h)
	require.NoError(t, err)
	assert.Equal(t, label, got)
}
