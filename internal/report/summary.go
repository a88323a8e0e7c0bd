// Package report renders the end-of-run summary of a load as text tables.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/vvka-141/widload/pkg/widload"
)

// Render writes the summary of r to w. Sections for skipped phases are omitted.
func Render(w io.Writer, r *widload.Report) {
	fmt.Fprintf(w, "Run %s started %s, took %s\n", r.RunID, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))

	if len(r.Phases) > 0 {
		table := newTable(w, "Phase", "Duration")
		for _, p := range r.Phases {
			table.Append([]string{p.Phase, p.Duration.Round(time.Millisecond).String()})
		}
		table.Render()
	}

	if r.Partitions != nil {
		renderPartitions(w, r.Partitions)
	}
	if r.Metadata != nil {
		renderMetadata(w, r.Metadata)
	}
	if c := r.Consolidation; c != nil {
		fmt.Fprintf(w, "Enriched rows: %d, dimension rows: %d, inconsistent keys: %d\n",
			c.EnrichedRows, c.DimensionRows, c.InconsistentKeys)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func renderPartitions(w io.Writer, pr *widload.ProvisionReport) {
	table := newTable(w, "Code", "Partition", "Rows", "Duration", "Status")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	for _, res := range pr.Results {
		table.Append([]string{
			res.Partition.SourceCode,
			res.Partition.Table,
			strconv.FormatInt(res.Rows, 10),
			res.Duration.Round(time.Millisecond).String(),
			partitionStatus(res.Err),
		})
	}
	table.SetFooter([]string{"", fmt.Sprintf("%d ok / %d failed", len(pr.Succeeded()), len(pr.Failed())),
		strconv.FormatInt(pr.TotalRows(), 10), "", ""})
	table.Render()
}

func partitionStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *widload.PartitionError
	if errors.As(err, &pe) {
		if errors.Is(pe.Err, widload.ErrNotStarted) {
			return pe.Err.Error()
		}
		return fmt.Sprintf("failed at %s: %v", pe.Stage, pe.Err)
	}
	return "failed: " + err.Error()
}

func renderMetadata(w io.Writer, mr *widload.MetadataLoadReport) {
	table := newTable(w, "File", "Size", "Rows", "Status")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	for _, f := range mr.Files {
		status := "ok"
		if f.Err != nil {
			var fe *widload.MetadataFileError
			if errors.As(f.Err, &fe) {
				status = "failed: " + fe.Err.Error()
			} else {
				status = "failed: " + f.Err.Error()
			}
		}
		table.Append([]string{f.File, strconv.FormatInt(f.Size, 10), strconv.FormatInt(f.Rows, 10), status})
	}
	table.Render()
	if mr.Sampled {
		fmt.Fprintf(w, "Sampled load: %d duplicate rows removed\n", mr.DuplicatesRemoved)
	}
}
