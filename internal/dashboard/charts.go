package dashboard

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/sells-group/crime-atlas/internal/analysis"
)

// bold is a qualitative palette for category series.
var bold = []drawing.Color{
	drawing.ColorFromHex("7f3c8d"),
	drawing.ColorFromHex("11a579"),
	drawing.ColorFromHex("3969ac"),
	drawing.ColorFromHex("f2b701"),
	drawing.ColorFromHex("e73f74"),
	drawing.ColorFromHex("80ba5a"),
	drawing.ColorFromHex("e68310"),
	drawing.ColorFromHex("008695"),
	drawing.ColorFromHex("cf1c90"),
	drawing.ColorFromHex("f97b72"),
	drawing.ColorFromHex("4b4b8f"),
	drawing.ColorFromHex("a5aa99"),
}

func paletteColor(i int) drawing.Color {
	return bold[i%len(bold)]
}

func (s *Server) renderCategoryChart(_ *http.Request, req request) ([]byte, string, error) {
	counts := analysis.CategoryCounts(analysis.Apply(s.ds.Incidents, req.Filter))
	if len(counts) == 0 {
		return nil, "", &notFound{msg: "no incidents match the current filters"}
	}

	bars := make([]chart.Value, len(counts))
	peak := 0
	for i, c := range counts {
		bars[i] = chart.Value{
			Label: c.Category,
			Value: float64(c.Count),
			Style: chart.Style{FillColor: paletteColor(i), StrokeColor: paletteColor(i)},
		}
		peak = max(peak, c.Count)
	}

	graph := chart.BarChart{
		Title:      categoriesTitle(req),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		Width:      1200,
		Height:     520,
		BarWidth:   max(10, 1000/len(bars)-10),
		BarSpacing: 10,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: yCeiling(peak)},
		},
		Bars: bars,
	}
	return renderPNG(graph.Render)
}

func (s *Server) renderTrendChart(_ *http.Request, req request) ([]byte, string, error) {
	tr := analysis.MonthlyTrends(analysis.Apply(s.ds.Incidents, req.Filter))
	if len(tr.Series) == 0 {
		return nil, "", &notFound{msg: "no incidents match the current filters"}
	}

	months := tr.Months
	if len(months) == 1 {
		// a single month has no x extent to draw; repeat it a month later
		months = []time.Time{months[0], months[0].AddDate(0, 1, 0)}
	}

	peak := 0
	series := make([]chart.Series, 0, len(tr.Series))
	for i, ts := range tr.Series {
		ys := make([]float64, len(months))
		for j := range months {
			k := min(j, len(ts.Counts)-1)
			ys[j] = float64(ts.Counts[k])
			peak = max(peak, ts.Counts[k])
		}
		series = append(series, chart.TimeSeries{
			Name:    ts.Category,
			XValues: months,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: paletteColor(i),
				StrokeWidth: 2,
				DotColor:    paletteColor(i),
				DotWidth:    3,
			},
		})
	}

	graph := chart.Chart{
		Title:      "Crime Trends Over Time",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		Width:      1200,
		Height:     520,
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2006")},
		YAxis: chart.YAxis{
			Name:  "Incident_Count",
			Range: &chart.ContinuousRange{Min: 0, Max: yCeiling(peak)},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return renderPNG(graph.Render)
}

func yCeiling(peak int) float64 {
	return math.Ceil(float64(max(peak, 1)) * 1.1)
}

func renderPNG(render func(chart.RendererProvider, io.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := render(chart.PNG, &buf); err != nil {
		return nil, "", eris.Wrap(err, "dashboard: render chart")
	}
	return buf.Bytes(), "image/png", nil
}
