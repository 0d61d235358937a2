// Package charts renders statistics as PNG images with go-chart.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"hamyon/internal/core"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

const (
	defaultWidth  = 800
	defaultHeight = 480
)

var (
	incomeColor  = drawing.ColorFromHex("2e7d32")
	outcomeColor = drawing.ColorFromHex("c62828")
)

// CategoryPie draws each category's share of the total. Categories with a
// zero amount are left out.
func CategoryPie(title string, items []core.CategoryAmount) ([]byte, error) {
	values := make([]chart.Value, 0, len(items))
	for _, it := range items {
		if it.Amount.Cents <= 0 {
			continue
		}
		label := it.Name
		if label == "" {
			label = "Uncategorized"
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", label, it.Amount.String()),
			Value: it.Amount.Float(),
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  defaultHeight,
		Height: defaultHeight,
		Values: values,
	}
	return render(pie.Render)
}

// DailySeries draws income and outcome per day across [from, to). Missing
// days are drawn as zero.
func DailySeries(title string, from, to time.Time, points []core.DailyAmount) ([]byte, error) {
	from = truncateDay(from)
	to = truncateDay(to)
	if !to.After(from.AddDate(0, 0, 1)) {
		to = from.AddDate(0, 0, 2)
	}

	income := make(map[time.Time]float64)
	outcome := make(map[time.Time]float64)
	for _, p := range points {
		day := truncateDay(p.Day)
		if p.Type == core.Income {
			income[day] += p.Amount.Float()
		} else {
			outcome[day] += p.Amount.Float()
		}
	}

	var (
		days         []time.Time
		inVals, outs []float64
		top          float64
	)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		inVals = append(inVals, income[d])
		outs = append(outs, outcome[d])
		top = math.Max(top, math.Max(income[d], outcome[d]))
	}
	if top <= 0 {
		top = 1
	}

	graph := chart.Chart{
		Title:  title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2},
				XValues: days,
				YValues: inVals,
			},
			chart.TimeSeries{
				Name:    "Outcome",
				Style:   chart.Style{StrokeColor: outcomeColor, StrokeWidth: 2},
				XValues: days,
				YValues: outs,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return render(graph.Render)
}

func render(fn func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
