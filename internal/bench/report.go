package bench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rbmap/internal/report"
)

const (
	chartWidth  = "100%"
	chartHeight = "450px"
	lineWidth   = 2
)

// Table renders one row per sample.
func Table(samples []Sample) string {
	tbl := report.NewTable(table.Row{"Size", "Insert ns/op", "Get ns/op", "Remove ns/op", "Height", "Bound"})

	for _, sample := range samples {
		tbl.AppendRow(table.Row{
			humanize.Comma(int64(sample.Size)),
			fmt.Sprintf("%.1f", sample.InsertNs),
			fmt.Sprintf("%.1f", sample.GetNs),
			fmt.Sprintf("%.1f", sample.RemoveNs),
			sample.Height,
			fmt.Sprintf("%.1f", sample.Bound),
		})
	}

	return tbl.Render()
}

// Write renders samples in format.
func Write(w io.Writer, format report.Format, samples []Sample) error {
	if format == report.FormatTable {
		if _, err := fmt.Fprintln(w, Table(samples)); err != nil {
			return fmt.Errorf("write table: %w", err)
		}

		return nil
	}

	return report.Encode(w, format, samples)
}

// Chart writes an HTML page with a latency chart and a height chart.
func Chart(samples []Sample, w io.Writer) error {
	labels := make([]string, len(samples))
	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Size)
	}

	latency := newLineChart("Operation latency", "ns/op", labels)
	addSeries(latency, "insert", samples, func(s Sample) float64 { return s.InsertNs })
	addSeries(latency, "get", samples, func(s Sample) float64 { return s.GetNs })
	addSeries(latency, "remove", samples, func(s Sample) float64 { return s.RemoveNs })

	height := newLineChart("Tree height", "nodes", labels)
	addSeries(height, "height", samples, func(s Sample) float64 { return float64(s.Height) })
	addSeries(height, "2·log2(n+1)", samples, func(s Sample) float64 { return s.Bound })

	page := components.NewPage()
	page.PageTitle = "rbmap benchmark"
	page.AddCharts(latency, height)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func newLineChart(title, yAxis string, labels []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "entries"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yAxis}),
	)
	line.SetXAxis(labels)

	return line
}

func addSeries(line *charts.Line, name string, samples []Sample, value func(Sample) float64) {
	data := make([]opts.LineData, len(samples))
	for idx, sample := range samples {
		data[idx] = opts.LineData{Value: value(sample)}
	}

	line.AddSeries(name, data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
}
