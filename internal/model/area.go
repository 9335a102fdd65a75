package model

import "github.com/twpayne/go-geom"

// Metric names shared by the map, correlation and explorer views.
const (
	MetricCrimeRate  = "Crime_Rate"
	MetricIMDScore   = "IMDScore"
	MetricIncome     = "Income"
	MetricEmployment = "Employment"
	MetricEducation  = "EducationScore"
	MetricHealth     = "HealthScore"
	MetricCrime      = "CrimeScore"
	MetricNone       = "None"
)

// Area is an LSOA boundary with its population and deprivation domain scores.
type Area struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	LocalName  string  `json:"local_name"`
	Population float64 `json:"population"`
	IMDScore   float64 `json:"imd_score"`
	Income     float64 `json:"income"`
	Employment float64 `json:"employment"`
	Education  float64 `json:"education"`
	Health     float64 `json:"health"`
	Crime      float64 `json:"crime"`

	// NoDeprivation marks an area without a deprivation row. Its domain
	// scores are undefined rather than zero.
	NoDeprivation bool `json:"no_deprivation,omitempty"`

	Geometry *geom.MultiPolygon `json:"-"`
}

// Label returns the human readable area label, falling back to the code name.
func (a Area) Label() string {
	if a.LocalName != "" {
		return a.LocalName
	}
	return a.Name
}

// Score returns the deprivation score named by metric.
// The second return value is false for unknown names, for Crime_Rate,
// which is not an area attribute, and for every domain of an area marked
// NoDeprivation.
func (a Area) Score(metric string) (float64, bool) {
	if a.NoDeprivation && IsScore(metric) {
		return 0, false
	}
	switch metric {
	case MetricIMDScore:
		return a.IMDScore, true
	case MetricIncome:
		return a.Income, true
	case MetricEmployment:
		return a.Employment, true
	case MetricEducation:
		return a.Education, true
	case MetricHealth:
		return a.Health, true
	case MetricCrime:
		return a.Crime, true
	default:
		return 0, false
	}
}

// AreaStats is an area together with the crime totals for the active window.
type AreaStats struct {
	Area
	TotalCrimes int      `json:"total_crimes"`
	CrimeRate   *float64 `json:"crime_rate"` // nil when population is zero
}

// CrimeRate returns crimes per 1,000 residents. The rate is undefined (nil)
// when population is not positive.
func CrimeRate(count int, population float64) *float64 {
	if population <= 0 {
		return nil
	}
	r := float64(count) / population * 1000
	return &r
}

// Value returns the named metric for this area, including Crime_Rate.
func (s AreaStats) Value(metric string) (float64, bool) {
	if metric == MetricCrimeRate {
		if s.CrimeRate == nil {
			return 0, false
		}
		return *s.CrimeRate, true
	}
	return s.Score(metric)
}

// IsScore reports whether metric names a deprivation domain score.
func IsScore(metric string) bool {
	switch metric {
	case MetricIMDScore, MetricIncome, MetricEmployment, MetricEducation, MetricHealth, MetricCrime:
		return true
	}
	return false
}

// ScoreOf returns the named score, or nil when it is undefined.
func (a Area) ScoreOf(metric string) *float64 {
	v, ok := a.Score(metric)
	if !ok {
		return nil
	}
	return &v
}
