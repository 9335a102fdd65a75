package dashboard

import (
	"html"
	"net/http"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/crime-atlas/internal/analysis"
	"github.com/sells-group/crime-atlas/internal/boundary"
	"github.com/sells-group/crime-atlas/internal/colormap"
	"github.com/sells-group/crime-atlas/internal/model"
)

func areasCenter(areas []model.Area) [2]float64 {
	lat, lng, ok := boundary.NewIndex(areas).Center()
	if !ok {
		return [2]float64{}
	}
	return [2]float64{lat, lng}
}

// stats applies the request filter and recomputes per-area statistics.
func (s *Server) stats(req request) ([]model.Incident, []model.AreaStats) {
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)
	return filtered, analysis.AreaStats(s.ds.Areas, filtered)
}

type filtersResponse struct {
	MinMonth   string            `json:"min_month"`
	MaxMonth   string            `json:"max_month"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	Categories []string          `json:"categories"`
	Selected   []string          `json:"selected"`
	Defaults   []string          `json:"defaults"`
	Metrics    []analysis.Metric `json:"metrics"`
	Title      string            `json:"title"`
	Center     [2]float64        `json:"center"`
	Zoom       int               `json:"zoom"`
	ExportName string            `json:"export_name"`
}

// handleFilters describes the sidebar controls. Categories are those present
// in the chosen window.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		s.fail(w, err)
		return
	}
	window := analysis.Window(s.ds.Incidents, req.Filter)
	writeJSON(w, http.StatusOK, filtersResponse{
		MinMonth:   monthString(s.first),
		MaxMonth:   monthString(s.last),
		Start:      monthString(req.Filter.Start),
		End:        monthString(req.Filter.End),
		Categories: nonNil(analysis.Categories(window)),
		Selected:   nonNil(req.Filter.Categories),
		Defaults:   nonNil(analysis.DefaultFilter(window, s.defaults).Categories),
		Metrics:    analysis.MapMetrics,
		Title:      s.cfg.Title,
		Center:     s.center,
		Zoom:       s.cfg.Zoom,
		ExportName: s.cfg.ExportName + ".csv",
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		s.fail(w, err)
		return
	}
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"overview":         s.overview,
		"filtered_records": len(filtered),
		"empty":            len(filtered) == 0,
	})
}

type layerStyle struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

type mapLayer struct {
	Type      string             `json:"type"`
	Name      string             `json:"name"`
	Metric    string             `json:"metric"`
	Fields    []string           `json:"tooltip_fields"`
	Aliases   []string           `json:"tooltip_aliases"`
	Highlight layerStyle         `json:"highlight"`
	Features  []*geojson.Feature `json:"features"`
}

// renderAreas returns the boundary layer with the filtered statistics and a
// precomputed style injected into each feature.
func (s *Server) renderAreas(_ *http.Request, req request) ([]byte, string, error) {
	_, stats := s.stats(req)
	fields, aliases := analysis.Tooltip(req.Metric)

	layer := mapLayer{
		Type:     "FeatureCollection",
		Metric:   req.Metric,
		Fields:   fields,
		Aliases:  aliases,
		Features: make([]*geojson.Feature, 0, len(stats)),
	}

	var cm *colormap.Linear
	if req.Metric == model.MetricNone {
		layer.Name = "LSOA Boundaries"
		layer.Highlight = layerStyle{Color: "blue", Weight: 2, FillOpacity: 0.1}
	} else {
		layer.Name = "Neighbourhood Areas (" + req.Metric + ")"
		layer.Highlight = layerStyle{Color: "black", Weight: 2, FillOpacity: 1}
		lo, hi, _ := analysis.MetricRange(stats, req.Metric)
		cm = colormap.YlOrRd9(lo, hi)
	}

	for _, st := range stats {
		if st.Geometry == nil {
			continue
		}
		props := areaProperties(st)
		if cm == nil {
			props["style"] = layerStyle{FillColor: "transparent", Color: "black", Weight: 0.8, FillOpacity: 0}
		} else {
			var v *float64
			if x, ok := st.Value(req.Metric); ok {
				v = &x
			}
			props["style"] = layerStyle{FillColor: cm.ColorOf(v), Color: "black", Weight: 0.5, FillOpacity: 0.7}
		}
		layer.Features = append(layer.Features, &geojson.Feature{
			ID:         st.Code,
			Geometry:   st.Geometry,
			Properties: props,
		})
	}
	return jsonBody(layer)
}

func areaProperties(st model.AreaStats) map[string]any {
	return map[string]any{
		"LSOA21CD":             st.Code,
		"LSOA21NM":             st.Name,
		"LSOA21LN":             st.Label(),
		"POP2022Total":         st.Population,
		model.MetricIMDScore:   st.ScoreOf(model.MetricIMDScore),
		model.MetricIncome:     st.ScoreOf(model.MetricIncome),
		model.MetricEmployment: st.ScoreOf(model.MetricEmployment),
		model.MetricEducation:  st.ScoreOf(model.MetricEducation),
		model.MetricHealth:     st.ScoreOf(model.MetricHealth),
		model.MetricCrime:      st.ScoreOf(model.MetricCrime),
		"Total_Crimes":         st.TotalCrimes,
		model.MetricCrimeRate:  st.CrimeRate,
	}
}

type legendResponse struct {
	Metric  string          `json:"metric"`
	Caption string          `json:"caption,omitempty"`
	Min     *float64        `json:"min"`
	Max     *float64        `json:"max"`
	Stops   []colormap.Stop `json:"stops"`
}

func (s *Server) renderLegend(_ *http.Request, req request) ([]byte, string, error) {
	resp := legendResponse{Metric: req.Metric, Stops: []colormap.Stop{}}
	if req.Metric == model.MetricNone {
		return jsonBody(resp)
	}
	_, stats := s.stats(req)
	lo, hi, ok := analysis.MetricRange(stats, req.Metric)
	cm := colormap.YlOrRd9(lo, hi)
	cm.Caption = "Legend: " + req.Metric
	resp.Caption = cm.Caption
	if ok {
		resp.Min, resp.Max = &cm.Min, &cm.Max
		resp.Stops = cm.Stops()
	}
	return jsonBody(resp)
}

type heatResponse struct {
	Name       string               `json:"name"`
	Points     []analysis.HeatPoint `json:"points"`
	Radius     int                  `json:"radius"`
	Blur       int                  `json:"blur"`
	MinOpacity float64              `json:"min_opacity"`
	Gradient   map[string]string    `json:"gradient"`
}

func (s *Server) renderHeat(_ *http.Request, req request) ([]byte, string, error) {
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)
	return jsonBody(heatResponse{
		Name:       "Crime Hotspots",
		Points:     analysis.HeatPoints(filtered),
		Radius:     10,
		Blur:       15,
		MinOpacity: 0.4,
		Gradient:   map[string]string{"0.4": "blue", "0.65": "lime", "1": "red"},
	})
}

type venueMarker struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Area  string  `json:"area_code,omitempty"`
	Popup string  `json:"popup"`
}

// handleVenues returns every venue; the layer does not follow the filter.
func (s *Server) handleVenues(w http.ResponseWriter, _ *http.Request) {
	out := make([]venueMarker, 0, len(s.ds.Venues))
	for _, v := range s.ds.Venues {
		out = append(out, venueMarker{
			Name:  v.Name,
			Type:  v.Type,
			Lat:   v.Latitude,
			Lng:   v.Longitude,
			Area:  v.AreaCode,
			Popup: "<b>" + html.EscapeString(v.Name) + "</b><br>" + html.EscapeString(v.Type),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": "Night-Time Economy", "venues": out})
}

func (s *Server) renderCategories(_ *http.Request, req request) ([]byte, string, error) {
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)
	return jsonBody(map[string]any{
		"title":  categoriesTitle(req),
		"counts": nonNil(analysis.CategoryCounts(filtered)),
	})
}

func categoriesTitle(req request) string {
	start, end := req.Filter.Start, req.Filter.End
	if start.IsZero() || end.IsZero() {
		return "Total Recorded Incidents by Category"
	}
	return "Total Recorded Incidents by Category (" + start.Format("2006-01-02") + " to " + end.Format("2006-01-02") + ")"
}

type trendsResponse struct {
	Months []string               `json:"months"`
	Series []analysis.TrendSeries `json:"series"`
}

func (s *Server) renderTrends(_ *http.Request, req request) ([]byte, string, error) {
	tr := analysis.MonthlyTrends(analysis.Apply(s.ds.Incidents, req.Filter))
	resp := trendsResponse{Months: make([]string, len(tr.Months)), Series: nonNil(tr.Series)}
	for i, m := range tr.Months {
		resp.Months[i] = m.Format(model.MonthLayout)
	}
	return jsonBody(resp)
}

func (s *Server) renderCorrelation(_ *http.Request, req request) ([]byte, string, error) {
	_, stats := s.stats(req)
	return jsonBody(analysis.CorrelationMatrix(stats, analysis.CorrelationMetrics))
}

func (s *Server) renderScatter(r *http.Request, req request) ([]byte, string, error) {
	q := r.URL.Query()
	x, y := q.Get("x"), q.Get("y")
	if x == "" {
		x = model.MetricIncome
	}
	if y == "" {
		y = model.MetricCrimeRate
	}
	if !analysis.IsAreaMetric(x) || !analysis.IsAreaMetric(y) {
		return nil, "", badRequestf("x and y must be area metrics")
	}
	_, stats := s.stats(req)
	return jsonBody(analysis.Scatter(stats, x, y))
}

type explorerRow struct {
	Code      string   `json:"code"`
	LocalName string   `json:"LSOA21LN"`
	IMDScore  *float64 `json:"IMDScore"`
	CrimeRate *float64 `json:"Crime_Rate"`
	Total     int      `json:"Total_Crimes"`
}

func (s *Server) renderExplorer(r *http.Request, req request) ([]byte, string, error) {
	n := s.cfg.TopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			return nil, "", badRequestf("n must be between 1 and 100")
		}
		n = v
	}

	_, stats := s.stats(req)
	deprived := analysis.TopN(stats, model.MetricIMDScore, n)
	crime := analysis.TopN(stats, model.MetricCrimeRate, n)
	common := analysis.Overlap(deprived, crime)

	return jsonBody(map[string]any{
		"n":            n,
		"top_deprived": explorerRows(deprived),
		"top_crime":    explorerRows(crime),
		"overlap":      nonNil(common),
		"finding":      analysis.KeyFinding(common, n),
	})
}

func explorerRows(stats []model.AreaStats) []explorerRow {
	out := make([]explorerRow, len(stats))
	for i, st := range stats {
		out[i] = explorerRow{Code: st.Code, LocalName: st.Label(), IMDScore: st.ScoreOf(model.MetricIMDScore), CrimeRate: st.CrimeRate, Total: st.TotalCrimes}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
