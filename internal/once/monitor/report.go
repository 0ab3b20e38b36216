package monitor

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteMetricsReport renders a metric-name → value mapping (the flattened
// evaluation output) as a standalone HTML bar chart.
func WriteMetricsReport(metrics map[string]float64, title, path string) error {
	if len(metrics) == 0 {
		return fmt.Errorf("no metrics to report")
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([]opts.BarData, len(names))
	for i, name := range names {
		data[i] = opts.BarData{Value: metrics[name]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 45, Show: opts.Bool(true)}}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "520px"}),
	)
	bar.SetXAxis(names).AddSeries("value", data)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := bar.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
