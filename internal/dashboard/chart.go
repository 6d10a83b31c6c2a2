package dashboard

import (
	"math"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Kind int

const (
	Bar Kind = iota
	HBar
	Line
	Pie
)

type Point struct {
	Label string
	Value float64
}

// Chart is one panel of a dashboard.
type Chart struct {
	Title  string
	Kind   Kind
	Points []Point
	// Money labels the value axis in dollars.
	Money bool
}

const (
	chartWidth  = "580px"
	chartHeight = "380px"
	labelRunes  = 28
)

var numPrinter = message.NewPrinter(language.English)

// series returns labels and values in display order. Horizontal bars are
// reversed so the first point is drawn on top; pie slices at or below zero
// are dropped.
func (c Chart) series() ([]string, []float64) {
	labels := make([]string, 0, len(c.Points))
	values := make([]float64, 0, len(c.Points))
	for _, p := range c.Points {
		if c.Kind == Pie && p.Value <= 0 {
			continue
		}
		labels = append(labels, truncate(p.Label, labelRunes))
		values = append(values, math.Round(p.Value*100)/100)
	}
	if c.Kind == HBar {
		slices.Reverse(labels)
		slices.Reverse(values)
	}
	return labels, values
}

func (c Chart) globals(empty bool) []charts.GlobalOpts {
	t := opts.Title{Title: c.Title}
	if empty {
		t.Subtitle = "No data"
	}
	trigger := "axis"
	if c.Kind == Pie {
		trigger = "item"
	}
	g := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(t),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: trigger}),
	}
	switch {
	case c.Kind == HBar:
		g = append(g,
			charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
			charts.WithYAxisOpts(opts.YAxis{Type: "category"}),
			charts.WithGridOpts(opts.Grid{Left: "30%"}),
		)
	case c.Kind != Pie && c.Money:
		g = append(g, charts.WithYAxisOpts(opts.YAxis{Name: "USD"}))
	}
	return g
}

// echart converts c into a go-echarts chart.
func (c Chart) echart() components.Charter {
	labels, values := c.series()
	empty := len(values) == 0

	switch c.Kind {
	case Pie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(append(c.globals(empty),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Orient: "vertical", Left: "right", Top: "middle"}),
		)...)
		data := make([]opts.PieData, len(values))
		for i, v := range values {
			data[i] = opts.PieData{Name: labels[i], Value: v}
		}
		pie.AddSeries(c.Title, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}))
		return pie

	case Line:
		line := charts.NewLine()
		line.SetGlobalOptions(c.globals(empty)...)
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Name: labels[i], Value: v}
		}
		line.SetXAxis(labels).AddSeries(c.Title, data)
		return line

	default:
		bar := charts.NewBar()
		bar.SetGlobalOptions(c.globals(empty)...)
		data := make([]opts.BarData, len(values))
		for i, v := range values {
			data[i] = opts.BarData{Name: labels[i], Value: v}
		}
		bar.SetXAxis(labels).AddSeries(c.Title, data)
		if c.Kind == HBar {
			bar.XYReversal()
		}
		return bar
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
