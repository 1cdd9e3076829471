package partlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateFirmwareDisks(t *testing.T) {
	store := NewMemConfigStore()
	store.Subkeys_[firmwareMapRoot] = []string{"0"}
	store.Subkeys_[firmwareMapRoot+`\0\DiskController`] = []string{"0"}
	store.Subkeys_[firmwareMapRoot+`\0\DiskController\0\DiskPeripheral`] = []string{"0", "1"}

	store.StringValues[[2]string{firmwareMapRoot + `\0\DiskController\0\DiskPeripheral\0`, "Identifier"}] = "deadbeef-cafebabe-0"
	store.StringValues[[2]string{firmwareMapRoot + `\0\DiskController\0\DiskPeripheral\1`, "Identifier"}] = "00000001-00000002-0"

	disks, err := EnumerateFirmwareDisks(store)
	require.NoError(t, err)
	require.Len(t, disks, 2)

	assert.EqualValues(t, 0xdeadbeef, disks[0].Checksum)
	assert.EqualValues(t, 0xcafebabe, disks[0].Signature)
	assert.EqualValues(t, 0, disks[0].AdapterNumber)

	assert.EqualValues(t, 1, disks[1].Checksum)
	assert.EqualValues(t, 2, disks[1].Signature)
}

func TestSystemDiskPrefersFirmwareCorrelatedDisk(t *testing.T) {
	d0 := testDisk()
	d0.DiskNumber = 0
	d1 := testDisk()
	d1.DiskNumber = 1

	list := &PartitionList{
		Disks:         []*Disk{d0, d1},
		FirmwareDisks: []*FirmwareDisk{{Disk: d1}},
	}

	assert.Same(t, d1, SystemDisk(list))
}

func TestSystemDiskFallsBackToFirstDisk(t *testing.T) {
	d0 := testDisk()
	list := &PartitionList{Disks: []*Disk{d0}}
	assert.Same(t, d0, SystemDisk(list))
}
