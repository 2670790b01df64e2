package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bc-dunia/threadviz/internal/console"
	"github.com/bc-dunia/threadviz/internal/types"
)

const barWidth = 30

// Render writes a plain-text frame of v.
func Render(w io.Writer, v console.View) {
	fmt.Fprintf(w, "Agent: %s", v.Connectivity)
	if v.Busy {
		fmt.Fprint(w, "  [working]")
	}
	fmt.Fprintln(w)
	if v.Error != "" {
		fmt.Fprintf(w, "! %s\n", v.Error)
	}
	fmt.Fprintf(w, "Algorithm: %s\n", v.Algorithm)

	snap := v.Snapshot
	if snap == nil {
		fmt.Fprintln(w, "No stats yet.")
		return
	}

	fmt.Fprintf(w, "CPU average: %.1f%%  Memory: %.1f%%  Cores: %d  Active tasks: %d\n\n",
		snap.CPUAverage, snap.MemoryPercent, snap.CPUCount, v.ActiveTasks)

	for i, pct := range snap.CPUPercentPerCore {
		fmt.Fprintf(w, "%-8s %s %5.1f%%\n", types.CoreLabel(i), bar(pct), pct)
	}

	if len(snap.ActiveTasks) > 0 {
		fmt.Fprintln(w, "\nActive tasks:")
		writeTasks(w, snap.ActiveTasks)
	}
	if len(snap.TaskHistory) > 0 {
		fmt.Fprintln(w, "\nRecent tasks:")
		writeTasks(w, snap.TaskHistory)
	}
	if n := len(v.History); n > 0 {
		fmt.Fprintf(w, "\nHistory: %d points, %s to %s\n", n, v.History[0].Time, v.History[n-1].Time)
	}
}

func writeTasks(w io.Writer, tasks []types.TaskRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCORE\tTHREAD\tSTATUS\tDURATION")
	for _, t := range tasks {
		id := t.TaskID
		if len(id) > 8 {
			id = id[:8]
		}
		duration := "-"
		if t.Duration != nil {
			duration = fmt.Sprintf("%.2fs", *t.Duration)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", id, t.Type, t.CPUCore, t.ThreadID, t.Status, duration)
	}
	tw.Flush()
}

func bar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
