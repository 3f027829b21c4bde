package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wonny/leadscore/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	singleLine = "───────────────────────────────────────────────────────────"
	doubleLine = "═══════════════════════════════════════════════════════════"
)

// printHeader prints a boxed command title
func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, singleLine)
}

// printKeyValue prints an aligned key-value pair
func printKeyValue(w io.Writer, key string, value string) {
	fmt.Fprintf(w, "   %-24s : %s\n", key, value)
}

func printSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

func printWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// printReport prints the run report summary
func printReport(w io.Writer, report *contracts.RunReport) {
	printHeader(w, "Feature run "+report.RunID)
	printKeyValue(w, "Config hash", report.ConfigHash)
	printKeyValue(w, "Duration", report.Duration().Round(time.Millisecond).String())
	fmt.Fprintln(w, singleLine)

	printKeyValue(w, "Entities", strconv.Itoa(report.Entities))
	printKeyValue(w, "Converting entities", strconv.Itoa(report.ConvertingEntities))
	printKeyValue(w, "Raw usage rows", strconv.Itoa(report.RawUsageRows))
	printKeyValue(w, "Dropped (post-conversion)", strconv.Itoa(report.DroppedAfterConversion))
	printKeyValue(w, "Unknown entity rows", strconv.Itoa(report.UnknownEntityRows))
	printKeyValue(w, "Missing firmographics", strconv.Itoa(report.MissingFirmographics))
	printKeyValue(w, "Empty activity", strconv.Itoa(report.EmptyActivity))
	printKeyValue(w, "No snapshots", strconv.Itoa(report.NoSnapshots))
	fmt.Fprintln(w, singleLine)

	printKeyValue(w, "Rows", strconv.Itoa(report.Rows))
	printKeyValue(w, "Positives", fmt.Sprintf("%d (%.2f%%)", report.Positives, report.PositiveRate()*100))

	if len(report.Stages) > 0 {
		fmt.Fprintln(w, singleLine)
		for _, st := range report.Stages {
			status := fmt.Sprintf("%d → %d", st.InputCount, st.OutputCount)
			if st.Error != "" {
				status = "failed: " + st.Error
			}
			printKeyValue(w, st.Stage.String(), fmt.Sprintf("%dms  %s", st.Duration, status))
		}
	}
	fmt.Fprintln(w, doubleLine)
}

// printTable prints fixed-width columns
func printTable(w io.Writer, columns []string, widths []int, rows [][]string) {
	line := func(values []string) {
		for i, val := range values {
			fmt.Fprintf(w, "%-*s", widths[i], val)
			if i < len(values)-1 {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprintln(w)
	}

	line(columns)
	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	for i := 0; i < total; i++ {
		fmt.Fprint(w, "─")
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		line(row)
	}
}
