package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/crime-atlas/internal/model"
)

// CorrelationMetrics is the default column set of the correlation matrix.
var CorrelationMetrics = []string{
	model.MetricCrimeRate,
	model.MetricIMDScore,
	model.MetricIncome,
	model.MetricEmployment,
	model.MetricEducation,
}

// Matrix is a symmetric Pearson correlation matrix. Values[i][j] is nil when
// the coefficient is undefined (fewer than two rows or zero variance).
// Counts[i][j] is the number of areas used for that cell and N the number
// of areas with every metric defined.
type Matrix struct {
	Metrics []string     `json:"metrics"`
	Values  [][]*float64 `json:"values"`
	Counts  [][]int      `json:"counts"`
	N       int          `json:"n"`
}

// CorrelationMatrix computes Pearson coefficients between metrics. Each cell
// uses the areas where both of its metrics are defined, so a rate without
// population drops out of the rate pairs only.
func CorrelationMatrix(stats []model.AreaStats, metrics []string) Matrix {
	var n int
	vals := make([][]float64, len(stats))
	defined := make([][]bool, len(stats))
	for i, s := range stats {
		vals[i] = make([]float64, len(metrics))
		defined[i] = make([]bool, len(metrics))
		complete := len(metrics) > 0
		for j, m := range metrics {
			v, ok := s.Value(m)
			ok = ok && !math.IsNaN(v)
			vals[i][j], defined[i][j] = v, ok
			complete = complete && ok
		}
		if complete {
			n++
		}
	}

	mx := Matrix{
		Metrics: metrics,
		Values:  make([][]*float64, len(metrics)),
		Counts:  make([][]int, len(metrics)),
		N:       n,
	}
	for a := range metrics {
		mx.Values[a] = make([]*float64, len(metrics))
		mx.Counts[a] = make([]int, len(metrics))
		for b := range metrics {
			var x, y []float64
			for i := range stats {
				if defined[i][a] && defined[i][b] {
					x = append(x, vals[i][a])
					y = append(y, vals[i][b])
				}
			}
			mx.Values[a][b] = pearson(x, y)
			mx.Counts[a][b] = len(x)
		}
	}
	return mx
}

func pearson(x, y []float64) *float64 {
	if len(x) < 2 {
		return nil
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// ScatterPoint is one area in the scatter plot.
type ScatterPoint struct {
	Code     string  `json:"code"`
	Label    string  `json:"label"`
	CodeName string  `json:"code_name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Trendline is the ordinary least squares fit y = Intercept + Slope*x.
type Trendline struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
}

// ScatterResult holds the points, fit and correlation of two metrics.
type ScatterResult struct {
	X         string         `json:"x"`
	Y         string         `json:"y"`
	Points    []ScatterPoint `json:"points"`
	Trendline *Trendline     `json:"trendline"`
	R         *float64       `json:"r"`
}

// Scatter pairs metric x against y for every area where both are defined
// and fits an OLS trendline. The fit is nil when x has no variance.
func Scatter(stats []model.AreaStats, x, y string) ScatterResult {
	res := ScatterResult{X: x, Y: y, Points: []ScatterPoint{}}
	var xs, ys []float64
	for _, s := range stats {
		xv, okx := s.Value(x)
		yv, oky := s.Value(y)
		if !okx || !oky || math.IsNaN(xv) || math.IsNaN(yv) {
			continue
		}
		xs = append(xs, xv)
		ys = append(ys, yv)
		res.Points = append(res.Points, ScatterPoint{Code: s.Code, Label: s.Label(), CodeName: s.Name, X: xv, Y: yv})
	}

	res.R = pearson(xs, ys)
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return res
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	res.Trendline = &Trendline{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
	}
	return res
}

// TopN returns the n areas with the highest value of metric. Areas where
// the metric is undefined are left out and ties break by area code.
func TopN(stats []model.AreaStats, metric string, n int) []model.AreaStats {
	sorted := make([]model.AreaStats, 0, len(stats))
	for _, s := range stats {
		if v, ok := s.Value(metric); ok && !math.IsNaN(v) {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, _ := sorted[i].Value(metric)
		vj, _ := sorted[j].Value(metric)
		if vi != vj {
			return vi > vj
		}
		return sorted[i].Code < sorted[j].Code
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Overlap returns the labels of areas present in both lists, in the order
// they appear in a.
func Overlap(a, b []model.AreaStats) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s.Label()] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, s := range a {
		l := s.Label()
		if _, ok := inB[l]; !ok {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// KeyFinding describes the overlap between two top-n lists.
func KeyFinding(common []string, n int) string {
	if len(common) == 0 {
		return fmt.Sprintf("Zero overlap between Top %d Poorest and Top %d High-Crime areas.", n, n)
	}
	return fmt.Sprintf("%d out of %d neighbourhoods appear in both lists: %s",
		len(common), n, strings.Join(common, ", "))
}
