package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonetids/internal/analysis"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrNoProtocols is returned when there is nothing to chart.
var ErrNoProtocols = errors.New("no protocol detected, chart not generated")

// ChartFormat selects the chart renderer.
type ChartFormat int

const (
	ChartPNG ChartFormat = iota
	ChartSVG
)

const (
	chartWidth  = 1000
	chartHeight = 600
)

// RenderChart draws the protocol distribution as a bar chart, one bar per
// protocol in the order given.
func RenderChart(w io.Writer, protocols []analysis.ProtocolStat, format ChartFormat) error {
	if len(protocols) == 0 {
		return ErrNoProtocols
	}

	bars := make([]chart.Value, 0, len(protocols))
	maxCount := 1
	for _, p := range protocols {
		bars = append(bars, chart.Value{Value: float64(p.Count), Label: string(p.Protocol)})
		if p.Count > maxCount {
			maxCount = p.Count
		}
	}

	barWidth := 600 / len(protocols)
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 10 {
		barWidth = 10
	}

	graph := chart.BarChart{
		Title:      "Protocol distribution",
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barWidth / 2,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		// An explicit range keeps single-valued data renderable.
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount) * 1.1},
		},
		Bars: bars,
	}

	renderer := chart.PNG
	if format == ChartSVG {
		renderer = chart.SVG
	}
	if err := graph.Render(renderer, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteChart renders the chart into a file.
func WriteChart(path string, protocols []analysis.ProtocolStat, format ChartFormat) error {
	if len(protocols) == 0 {
		return ErrNoProtocols
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := RenderChart(f, protocols, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
