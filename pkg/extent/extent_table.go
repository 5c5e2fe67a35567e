package extent

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteExtentTable writes a human readable table of extents, such as
// the ones returned by ExtentAllocator.GetExtents(). The format is
// intended for logging and is not stable.
func WriteExtentTable(w io.Writer, deviceName string, extents []Extent) error {
	if _, err := fmt.Fprintf(w, "%s memory allocation table\n", deviceName); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Owner\tStart block\tSize\tState")
	for _, e := range extents {
		owner := "-"
		if e.HasOwner {
			owner = string(e.Owner)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", owner, e.OffsetBlocks, e.SizeBlocks, e.State)
	}
	return tw.Flush()
}
