package analysis

import (
	"math"

	"github.com/sells-group/crime-atlas/internal/model"
)

// Metric is a selectable map layer.
type Metric struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// MapMetrics lists the map layer options in display order.
var MapMetrics = []Metric{
	{Name: model.MetricCrimeRate, Label: "Crimes per 1,000"},
	{Name: model.MetricIMDScore, Label: "IMDScore Deprivation"},
	{Name: model.MetricIncome, Label: "Income Deprivation"},
	{Name: model.MetricEmployment, Label: "Employment Deprivation"},
	{Name: model.MetricNone, Label: "Boundaries Only (Transparent)"},
}

// LookupMetric returns the map metric with the given name.
func LookupMetric(name string) (Metric, bool) {
	for _, m := range MapMetrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// IsAreaMetric reports whether name is a value AreaStats.Value understands.
// The scatter and correlation views accept these, which include domains not
// offered as map layers.
func IsAreaMetric(name string) bool {
	if name == model.MetricCrimeRate {
		return true
	}
	return model.IsScore(name)
}

// Tooltip returns the map tooltip fields and their aliases for a metric.
func Tooltip(metric string) (fields, aliases []string) {
	switch metric {
	case model.MetricNone:
		return []string{"LSOA21LN", "LSOA21NM"}, []string{"Local Name:", "Code Name:"}
	case model.MetricCrimeRate:
		return []string{"LSOA21LN", "LSOA21NM", metric, "Total_Crimes"},
			[]string{"Local Name:", "Code Name:", "Crime Rate/1000:", "Total Incidents:"}
	default:
		return []string{"LSOA21LN", "LSOA21NM", metric},
			[]string{"Local Name:", "Code Name:", metric + " Score:"}
	}
}

// MetricRange returns the min and max of the defined values of metric.
// When they are equal max is bumped by one so a color scale stays valid.
func MetricRange(stats []model.AreaStats, metric string) (lo, hi float64, ok bool) {
	for _, s := range stats {
		v, defined := s.Value(metric)
		if !defined || math.IsNaN(v) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if ok && lo == hi {
		hi++
	}
	return lo, hi, ok
}

// HeatPoint is a [lat, lng] pair for the hotspot layer.
type HeatPoint [2]float64

// HeatPoints returns the coordinates of the filtered incidents, skipping any
// without a usable position.
func HeatPoints(incidents []model.Incident) []HeatPoint {
	out := make([]HeatPoint, 0, len(incidents))
	for _, inc := range incidents {
		if math.IsNaN(inc.Latitude) || math.IsNaN(inc.Longitude) {
			continue
		}
		if inc.Latitude == 0 && inc.Longitude == 0 {
			continue
		}
		out = append(out, HeatPoint{inc.Latitude, inc.Longitude})
	}
	return out
}
