package stress

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rbmap/internal/report"
)

// Summary aggregates a run.
type Summary struct {
	Cases     int           `json:"cases"      yaml:"cases"`
	Failed    int           `json:"failed"     yaml:"failed"`
	Ops       int           `json:"ops"        yaml:"ops"`
	Checks    int           `json:"checks"     yaml:"checks"`
	CPUTime   time.Duration `json:"cpu_time"   yaml:"cpu_time"`
	MaxHeight int           `json:"max_height" yaml:"max_height"`
}

// Report is the JSON and YAML document of a run.
type Report struct {
	Summary Summary      `json:"summary" yaml:"summary"`
	Cases   []CaseResult `json:"cases"   yaml:"cases"`
}

// Summarize totals results.
func Summarize(results []CaseResult) Summary {
	summary := Summary{Cases: len(results)}

	for _, result := range results {
		if result.Failed() {
			summary.Failed++
		}

		summary.Ops += result.Ops
		summary.Checks += result.Checks
		summary.CPUTime += result.Duration
		summary.MaxHeight = max(summary.MaxHeight, result.Height)
	}

	return summary
}

// Table renders one row per case plus a totals footer.
func Table(results []CaseResult) string {
	tbl := report.NewTable(table.Row{"Case", "Seed", "Ops", "Checks", "Peak", "Height", "Time", "Result"})

	for idx, result := range results {
		status := "pass"
		if result.Failed() {
			status = "FAIL"
		}

		tbl.AppendRow(table.Row{
			fmt.Sprintf("#%d", idx+1),
			result.Seed,
			humanize.Comma(int64(result.Ops)),
			humanize.Comma(int64(result.Checks)),
			humanize.Comma(int64(result.PeakLen)),
			result.Height,
			result.Duration.Round(time.Millisecond),
			status,
		})
	}

	summary := Summarize(results)
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d cases", summary.Cases), "",
		humanize.Comma(int64(summary.Ops)),
		humanize.Comma(int64(summary.Checks)),
		"", summary.MaxHeight,
		summary.CPUTime.Round(time.Millisecond),
		fmt.Sprintf("%d failed", summary.Failed),
	})

	return tbl.Render()
}

// Write renders results in format.
func Write(w io.Writer, format report.Format, results []CaseResult) error {
	if format == report.FormatTable {
		if _, err := fmt.Fprintln(w, Table(results)); err != nil {
			return fmt.Errorf("write table: %w", err)
		}

		return nil
	}

	return report.Encode(w, format, Report{Summary: Summarize(results), Cases: results})
}
