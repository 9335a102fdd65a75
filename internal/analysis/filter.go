// Package analysis computes the dashboard views from the in-memory dataset.
// Every function is pure: callers pass the incidents and areas they want
// considered and get freshly allocated results back.
package analysis

import (
	"time"

	"github.com/sells-group/crime-atlas/internal/model"
)

// Filter selects incidents by month window and crime category.
type Filter struct {
	Start time.Time // first month included; zero means unbounded
	End   time.Time // last month included; zero means unbounded

	// Categories lists the crime types to keep. A nil slice keeps every
	// category; an empty non-nil slice keeps none.
	Categories []string
}

// DefaultFilter returns the full date range of the dataset with the default
// crime selection narrowed to categories that occur in it.
func DefaultFilter(incidents []model.Incident, defaults []string) Filter {
	start, end, _ := DateRange(incidents)

	present := make(map[string]struct{})
	for _, c := range Categories(incidents) {
		present[c] = struct{}{}
	}
	selected := make([]string, 0, len(defaults))
	for _, c := range defaults {
		if _, ok := present[c]; ok {
			selected = append(selected, c)
		}
	}
	return Filter{Start: start, End: end, Categories: selected}
}

// InWindow reports whether the incident month falls inside the filter window.
func (f Filter) InWindow(month time.Time) bool {
	m := model.MonthStart(month)
	if !f.Start.IsZero() && m.Before(model.MonthStart(f.Start)) {
		return false
	}
	if !f.End.IsZero() && m.After(model.MonthStart(f.End)) {
		return false
	}
	return true
}

// Window returns the incidents inside the month window, ignoring categories.
func Window(incidents []model.Incident, f Filter) []model.Incident {
	out := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if f.InWindow(inc.Month) {
			out = append(out, inc)
		}
	}
	return out
}

// Apply returns the incidents matching both the window and the categories.
func Apply(incidents []model.Incident, f Filter) []model.Incident {
	var keep map[string]struct{}
	if f.Categories != nil {
		keep = make(map[string]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			keep[c] = struct{}{}
		}
	}

	out := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if !f.InWindow(inc.Month) {
			continue
		}
		if keep != nil {
			if _, ok := keep[inc.Category]; !ok {
				continue
			}
		}
		out = append(out, inc)
	}
	return out
}

// DateRange returns the first and last incident months. ok is false when
// there are no incidents.
func DateRange(incidents []model.Incident) (first, last time.Time, ok bool) {
	for i, inc := range incidents {
		m := model.MonthStart(inc.Month)
		if i == 0 || m.Before(first) {
			first = m
		}
		if i == 0 || m.After(last) {
			last = m
		}
	}
	return first, last, len(incidents) > 0
}

// Categories returns the distinct crime types in first-seen order.
func Categories(incidents []model.Incident) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, inc := range incidents {
		if _, ok := seen[inc.Category]; ok {
			continue
		}
		seen[inc.Category] = struct{}{}
		out = append(out, inc.Category)
	}
	return out
}

// Months lists every month from first to last inclusive.
func Months(first, last time.Time) []time.Time {
	first, last = model.MonthStart(first), model.MonthStart(last)
	var out []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}
