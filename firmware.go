package partlist

import (
	"fmt"
	"strconv"
	"strings"
)

const firmwareMapRoot = `HARDWARE\DESCRIPTION\System\MultifunctionAdapter`

// EnumerateFirmwareDisks walks the hierarchical configuration store under
// MultifunctionAdapter/<a>/DiskController/<c>/DiskPeripheral/<d>, building
// one FirmwareDisk per disk peripheral found, in (adapter, controller,
// disk) ascending order.
func EnumerateFirmwareDisks(store ConfigStore) ([]*FirmwareDisk, error) {
	if store == nil {
		return nil, nil
	}

	var disks []*FirmwareDisk

	adapters, err := store.Subkeys(firmwareMapRoot)
	if err != nil {
		return nil, fmt.Errorf("enumerate firmware disks: %w", err)
	}

	for _, a := range sortedNumeric(adapters) {
		adapterKey := firmwareMapRoot + `\` + a

		controllers, err := store.Subkeys(adapterKey + `\DiskController`)
		if err != nil {
			continue
		}

		for _, c := range sortedNumeric(controllers) {
			controllerKey := adapterKey + `\DiskController\` + c

			peripherals, err := store.Subkeys(controllerKey + `\DiskPeripheral`)
			if err != nil {
				continue
			}

			for _, d := range sortedNumeric(peripherals) {
				peripheralKey := controllerKey + `\DiskPeripheral\` + d

				fd, err := parseFirmwareDisk(store, peripheralKey, d)
				if err != nil {
					continue
				}
				fd.ControllerNumber = uint32(parseUintOr0(c))
				// AdapterNumber is forced to 0 per historical firmware
				// convention, not the <a> component of the key path.
				fd.AdapterNumber = 0
				disks = append(disks, fd)
			}
		}
	}

	return disks, nil
}

// parseFirmwareDisk reads the Identifier value ("CCCCCCCC-SSSSSSSS-?")
// under peripheralKey and produces a partially-filled FirmwareDisk.
func parseFirmwareDisk(store ConfigStore, peripheralKey, diskIndex string) (*FirmwareDisk, error) {
	identifier, err := store.StringValue(peripheralKey, "Identifier")
	if err != nil {
		return nil, fmt.Errorf("read Identifier: %w", err)
	}

	parts := strings.Split(identifier, "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed Identifier %q", identifier)
	}

	checksum, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("parse checksum from Identifier %q: %w", identifier, err)
	}
	signature, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("parse signature from Identifier %q: %w", identifier, err)
	}

	fd := &FirmwareDisk{
		DiskNumber: uint32(parseUintOr0(diskIndex)),
		Signature:  uint32(signature),
		Checksum:   uint32(checksum),
	}

	if data, err := store.BinaryValue(peripheralKey, "Configuration Data"); err == nil {
		fd.Geometry, fd.Int13 = parseDiskConfigurationData(data, int(fd.DiskNumber))
	}

	return fd, nil
}

// parseDiskConfigurationData returns zero Geometry and Int13DriveParameter
// values for every input: the raw resource descriptor is not decoded, so
// neither CM_DISK_GEOMETRY_DEVICE_DATA nor the d-th Int13DriveParameter is
// extracted from it. Callers that need the full resource list should read
// it directly from the store.
func parseDiskConfigurationData(data []byte, diskIndex int) (Geometry, Int13DriveParameter) {
	return Geometry{}, Int13DriveParameter{}
}

func sortedNumeric(keys []string) []string {
	out := append([]string(nil), keys...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && parseUintOr0(out[j-1]) > parseUintOr0(out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func parseUintOr0(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// SystemDisk resolves "the system disk": the disk correlated with the
// first firmware disk entry (in enumeration order) that has a scanned
// disk bound to it, not merely disk 0. No bootable flag is consulted.
// Falls back to the first scanned disk if no firmware entry correlates.
func SystemDisk(list *PartitionList) *Disk {
	for _, fd := range list.FirmwareDisks {
		if fd.Disk != nil {
			return fd.Disk
		}
	}
	if len(list.Disks) > 0 {
		return list.Disks[0]
	}
	return nil
}
