package server

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"tdgrid/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// renderHeatmap writes a page with the value table as a heatmap and the max error of
// every checkpoint so far as a line chart.
func renderHeatmap(w io.Writer, snap reinforcement.Snapshot, history []Checkpoint) error {
	page := components.NewPage()
	page.PageTitle = "tdgrid"
	page.AddCharts(
		valuesHeatmap(snap),
		maxErrorLine(history),
	)
	return page.Render(w)
}

func valuesHeatmap(snap reinforcement.Snapshot) *charts.HeatMap {
	xs := make([]string, snap.Width)
	for x := range xs {
		xs[x] = strconv.Itoa(x)
	}
	// Category axes grow upward; list y in reverse so row 0 is on top, as on the console.
	ys := make([]string, snap.Height)
	for i := range ys {
		ys[i] = strconv.Itoa(snap.Height - 1 - i)
	}

	minVal, maxVal := 0.0, 0.0
	items := make([]opts.HeatMapData, 0, len(snap.Values))
	for x := 0; x < snap.Width; x++ {
		for y := 0; y < snap.Height; y++ {
			val := math.Round(snap.At(x, y)*10) / 10
			minVal, maxVal = math.Min(minVal, val), math.Max(maxVal, val)
			items = append(items, opts.HeatMapData{Value: [3]interface{}{x, snap.Height - 1 - y, val}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "State values",
			Subtitle: fmt.Sprintf("pass %d, iteration %d", snap.Pass, snap.Iteration),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(minVal),
			Max:        float32(maxVal),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#313695", "#ffffbf", "#a50026"},
			},
		}),
	)
	hm.AddSeries("values", items)
	return hm
}

func maxErrorLine(history []Checkpoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Max error per checkpoint",
		}),
	)

	steps := make([]string, 0, len(history))
	items := make([]opts.LineData, 0, len(history))
	for _, cp := range history {
		steps = append(steps, fmt.Sprintf("%d:%d", cp.Pass, cp.Iteration))
		items = append(items, opts.LineData{Value: cp.MaxError})
	}

	line.SetXAxis(steps).AddSeries("max_error", items)
	return line
}
