// Command partlist is a non-interactive smoke-test client for the
// partlist library: it scans the system's disks, prints their region
// model, and can create, delete, or write a partition from the command
// line. It is not an installer UI — spec.md's Non-goals exclude that.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lowkeyfred/reactos"
)

var diskCount int

func main() {
	root := &cobra.Command{
		Use:   "partlist",
		Short: "Offline MBR disk partition editor",
	}
	root.PersistentFlags().IntVar(&diskCount, "disks", 1, "number of disks to scan")

	root.AddCommand(listDisksCmd(), createCmd(), deleteCmd(), writeCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func scanList() (*partlist.PartitionList, error) {
	dev := defaultBlockDevice()
	fs := partlist.DefaultFilesystemInferrer{}
	store := defaultConfigStore()
	mountReg := defaultMountRegistry()

	return partlist.ScanSystemDisks(context.Background(), dev, fs, store, mountReg, nil, diskCount)
}

func listDisksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-disks",
		Short: "Scan and print every disk's region model",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := scanList()
			if err != nil {
				return err
			}
			for _, d := range list.Disks {
				fmt.Printf("disk %d: style=%v sectors=%d signature=%#08x\n", d.DiskNumber, d.Style, d.SectorCount, d.Signature)
				for _, r := range d.Primary {
					printRegion("primary", r)
				}
				for _, r := range d.Logical {
					printRegion("logical", r)
				}
			}
			return nil
		},
	}
}

func printRegion(kind string, r *partlist.Region) {
	state := "free"
	if r.IsPartitioned {
		state = fmt.Sprintf("type=%#02x", r.PartitionType)
	}
	letter := "-"
	if r.Volume.DriveLetter != 0 {
		letter = string(r.Volume.DriveLetter) + ":"
	}
	fmt.Printf("  %s [%d,%d) %s letter=%s\n", kind, r.StartSector, r.End(), state, letter)
}

func createCmd() *cobra.Command {
	var disk int
	var start uint64
	var sizeBytes uint64
	var extended bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a partition in the free region starting at --start",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := scanList()
			if err != nil {
				return err
			}
			d := partlist.GetDiskByNumber(list, disk)
			if d == nil {
				return fmt.Errorf("no such disk %d", disk)
			}
			var region *partlist.Region
			for r := partlist.AdjacentRegion(d, nil, 0); r != nil; r = partlist.AdjacentRegion(d, r, partlist.Next) {
				if r.StartSector == start {
					region = r
					break
				}
			}
			if region == nil {
				return fmt.Errorf("no region starting at sector %d", start)
			}
			var status partlist.Status
			if extended {
				_, status = partlist.CreateExtendedPartition(list, region, sizeBytes)
			} else {
				_, status = partlist.CreatePartition(list, region, sizeBytes)
			}
			if !status.Ok() {
				return status
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&disk, "disk", 0, "disk number")
	cmd.Flags().Uint64Var(&start, "start", 0, "starting sector of the free region to use")
	cmd.Flags().Uint64Var(&sizeBytes, "size", 0, "size in bytes (0 = whole region)")
	cmd.Flags().BoolVar(&extended, "extended", false, "create an extended container instead of a plain partition")
	return cmd
}

func deleteCmd() *cobra.Command {
	var disk, partitionNumber int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a partition by disk and on-disk partition number",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := scanList()
			if err != nil {
				return err
			}
			d := partlist.GetDiskByNumber(list, disk)
			if d == nil {
				return fmt.Errorf("no such disk %d", disk)
			}
			region := partlist.GetPartition(d, partitionNumber)
			if region == nil {
				return fmt.Errorf("no such partition %d on disk %d", partitionNumber, disk)
			}
			if status := partlist.DeletePartition(context.Background(), list, region); !status.Ok() {
				return status
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&disk, "disk", 0, "disk number")
	cmd.Flags().IntVar(&partitionNumber, "partition", 0, "on-disk partition number")
	return cmd
}

func writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write",
		Short: "Write every dirty disk's layout back to the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := scanList()
			if err != nil {
				return err
			}
			partlist.WritePartitionsToDisk(context.Background(), list)
			partlist.SetMountedDeviceValues(list)
			return nil
		},
	}
}

func defaultBlockDevice() partlist.BlockDevice {
	if dev := platformBlockDevice(); dev != nil {
		return dev
	}
	fmt.Fprintln(os.Stderr, "partlist: no platform block device available, exiting")
	os.Exit(1)
	return nil
}
