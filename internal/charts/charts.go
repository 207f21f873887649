// Package charts renders the dashboard trend image from the running-balance
// series.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"smartcash/internal/ledger"
)

// Renderer draws PNG charts for the dashboard.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RunningBalancePNG renders the cumulative balance over time as a line
// chart. With fewer than two points there is no trend to draw and nil is
// returned so the caller can skip the image.
func (r *Renderer) RunningBalancePNG(points []ledger.BalancePoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, nil
	}

	xValues := make([]float64, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = float64(i)
		yValues[i] = float64(p.Total.Cents) / 100
	}

	labelEvery := len(points)/8 + 1

	graph := chart.Chart{
		Width:  900,
		Height: 360,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				i := int(f)
				if i < 0 || i >= len(points) || i%labelEvery != 0 {
					return ""
				}
				return points[i].Date.ISO()
			},
			Style: chart.Style{
				FontSize:  10,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				return fmt.Sprintf("R$ %.0f", f)
			},
			Style: chart.Style{
				FontSize:  10,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Balance",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
					FillColor:   chart.ColorBlue.WithAlpha(40),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render running balance chart: %w", err)
	}
	return buf.Bytes(), nil
}
