package analysis

import (
	"sort"
	"time"

	"github.com/sells-group/crime-atlas/internal/model"
)

// AreaStats recomputes per-area totals and crime rates for the filtered
// incidents. Areas with no incidents get a zero total. The result follows
// the order of areas.
func AreaStats(areas []model.Area, filtered []model.Incident) []model.AreaStats {
	counts := make(map[string]int, len(areas))
	for _, inc := range filtered {
		counts[inc.AreaCode]++
	}

	out := make([]model.AreaStats, len(areas))
	for i, a := range areas {
		n := counts[a.Code]
		out[i] = model.AreaStats{Area: a, TotalCrimes: n, CrimeRate: model.CrimeRate(n, a.Population)}
	}
	return out
}

// CategoryCount is the number of incidents of one crime type.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryCounts counts incidents per category, largest first. Ties sort by
// category name.
func CategoryCounts(incidents []model.Incident) []CategoryCount {
	counts := make(map[string]int)
	for _, inc := range incidents {
		counts[inc.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Overview holds the global dataset KPIs shown above the tabs.
type Overview struct {
	TotalRecords     int             `json:"total_records"`
	FirstMonth       string          `json:"first_month,omitempty"`
	LastMonth        string          `json:"last_month,omitempty"`
	DateRange        string          `json:"date_range"`
	UniqueCategories int             `json:"unique_categories"`
	TopCrime         string          `json:"top_crime"`
	TopCrimeCount    int             `json:"top_crime_count"`
	Top5             []CategoryCount `json:"top_5"`
}

// OverviewOf summarises all incidents regardless of the active filter.
func OverviewOf(incidents []model.Incident) Overview {
	ov := Overview{TotalRecords: len(incidents)}
	first, last, ok := DateRange(incidents)
	if !ok {
		return ov
	}
	ov.FirstMonth = first.Format(model.MonthLayout)
	ov.LastMonth = last.Format(model.MonthLayout)
	ov.DateRange = first.Format("Jan 2006") + " - " + last.Format("Jan 2006")

	counts := CategoryCounts(incidents)
	ov.UniqueCategories = len(counts)
	ov.TopCrime, ov.TopCrimeCount = counts[0].Category, counts[0].Count
	if len(counts) > 5 {
		counts = counts[:5]
	}
	ov.Top5 = counts
	return ov
}

// TrendSeries is the monthly incident count of one category, aligned with
// Trends.Months.
type TrendSeries struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Counts   []int  `json:"counts"`
}

// Trends is the month-by-category incident matrix.
type Trends struct {
	Months []time.Time   `json:"months"`
	Series []TrendSeries `json:"series"`
}

// MonthlyTrends counts incidents per month per category. Months run from the
// first to the last filtered month with gaps filled by zero counts; series
// are ordered like CategoryCounts.
func MonthlyTrends(incidents []model.Incident) Trends {
	first, last, ok := DateRange(incidents)
	if !ok {
		return Trends{}
	}
	months := Months(first, last)
	slot := make(map[time.Time]int, len(months))
	for i, m := range months {
		slot[m] = i
	}

	byCat := make(map[string][]int)
	for _, inc := range incidents {
		counts, ok := byCat[inc.Category]
		if !ok {
			counts = make([]int, len(months))
			byCat[inc.Category] = counts
		}
		counts[slot[model.MonthStart(inc.Month)]]++
	}

	t := Trends{Months: months}
	for _, cc := range CategoryCounts(incidents) {
		t.Series = append(t.Series, TrendSeries{Category: cc.Category, Total: cc.Count, Counts: byCat[cc.Category]})
	}
	return t
}
