package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderCleanup prints a sweep result for a terminal.
func RenderCleanup(w io.Writer, dir string, res *retention.Result) {
	verb := "Deleted"
	if res.DryRun {
		verb = "Would delete"
		fmt.Fprintln(w, "DRY RUN: no files were removed")
	}

	fmt.Fprintf(w, "Directory:   %s\n", dir)
	fmt.Fprintf(w, "Scanned:     %d files\n", res.FilesScanned)
	fmt.Fprintf(w, "%-12s %d files (%s)\n", verb+":", res.FilesDeleted, FormatBytes(res.SpaceFreedBytes))
	fmt.Fprintf(w, "Duration:    %s\n", FormatDurationShort(time.Duration(res.DurationMs)*time.Millisecond))

	if len(res.Deleted) > 0 {
		fmt.Fprintln(w)
		for _, name := range res.Deleted {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "\n%d file(s) could not be deleted:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  ! %s: %s\n", e.File, e.Error)
		}
	}
}

// RenderStats prints directory statistics for a terminal.
func RenderStats(w io.Writer, dir string, s *retention.Stats) {
	fmt.Fprintf(w, "Directory:    %s\n", dir)
	if s.Count == 0 {
		fmt.Fprintln(w, "No images found.")
		return
	}

	fmt.Fprintf(w, "Images:       %d\n", s.Count)
	fmt.Fprintf(w, "Total size:   %s\n", FormatBytes(s.TotalSize))
	fmt.Fprintf(w, "Average size: %s\n", FormatBytes(s.AverageSize))
	fmt.Fprintf(w, "Average age:  %s\n", FormatAge(s.AverageAge))
	if s.OldestFile != nil {
		fmt.Fprintf(w, "Oldest:       %s (%s)\n", s.OldestFile.Name, FormatAge(s.OldestFile.Age))
	}
	if s.NewestFile != nil {
		fmt.Fprintf(w, "Newest:       %s (%s)\n", s.NewestFile.Name, FormatAge(s.NewestFile.Age))
	}
}

// RenderModels prints the capability table.
func RenderModels(w io.Writer, models []params.Capability) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSIZES\tQUALITIES\tSTYLES\tN")
	for _, m := range models {
		n := fmt.Sprintf("%d", m.MinN)
		if m.MaxN != m.MinN {
			n = fmt.Sprintf("%d-%d", m.MinN, m.MaxN)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.Model,
			strings.Join(m.Sizes, ", "),
			orDash(m.Qualities),
			orDash(m.Styles),
			n,
		)
	}
	return tw.Flush()
}

func orDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
