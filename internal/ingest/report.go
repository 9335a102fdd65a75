// Package ingest cleans raw incident, deprivation, population and venue
// inputs and joins them to LSOA boundaries.
package ingest

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"go.uber.org/zap"
)

// Drop reasons recorded in a SourceReport.
const (
	DropMissingCoords   = "missing_coords"
	DropBadCoords       = "bad_coords"
	DropBadMonth        = "bad_month"
	DropMissingCategory = "missing_category"
	DropDuplicateID     = "duplicate_id"
	DropOutsideRegion   = "outside_region"
	DropMissingCode     = "missing_code"
	DropBadValue        = "bad_value"
	DropVenueType       = "venue_type"
)

// SourceReport counts rows read, kept and dropped for one input.
type SourceReport struct {
	Source  string         `json:"source"`
	Read    int            `json:"read"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

func newSourceReport(source string) SourceReport {
	return SourceReport{Source: source, Dropped: make(map[string]int)}
}

func (s *SourceReport) drop(reason string) {
	s.Dropped[reason]++
}

// unkeep moves a previously kept row to a drop reason.
func (s *SourceReport) unkeep(reason string) {
	s.Kept--
	s.drop(reason)
}

// TotalDropped sums all drop reasons.
func (s SourceReport) TotalDropped() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Report summarises a pipeline run.
type Report struct {
	Sources []SourceReport `json:"sources"`

	Areas                   int      `json:"areas"`
	BoundariesSkipped       int      `json:"boundaries_skipped"`
	BoundariesOutside       int      `json:"boundaries_outside_region"`
	AreasMissingDeprivation []string `json:"areas_missing_deprivation,omitempty"`
	AreasMissingPopulation  []string `json:"areas_missing_population,omitempty"`
}

// Source returns the report for the named source, or nil.
func (r *Report) Source(name string) *SourceReport {
	for i := range r.Sources {
		if r.Sources[i].Source == name {
			return &r.Sources[i]
		}
	}
	return nil
}

// Log writes the report through the given logger.
func (r *Report) Log(log *zap.Logger) {
	for _, s := range r.Sources {
		fields := []zap.Field{
			zap.String("source", s.Source),
			zap.Int("read", s.Read),
			zap.Int("kept", s.Kept),
		}
		for _, reason := range sortedReasons(s.Dropped) {
			fields = append(fields, zap.Int("dropped_"+reason, s.Dropped[reason]))
		}
		log.Info("ingest: source summary", fields...)
	}
	log.Info("ingest: areas",
		zap.Int("areas", r.Areas),
		zap.Int("boundaries_skipped", r.BoundariesSkipped),
		zap.Int("boundaries_outside_region", r.BoundariesOutside),
		zap.Int("missing_deprivation", len(r.AreasMissingDeprivation)),
		zap.Int("missing_population", len(r.AreasMissingPopulation)),
	)
}

// Print writes the report as a table.
func (r *Report) Print(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tREAD\tKEPT\tDROPPED\tREASONS")
	_, _ = fmt.Fprintln(w, "------\t----\t----\t-------\t-------")
	for _, s := range r.Sources {
		reasons := ""
		for i, reason := range sortedReasons(s.Dropped) {
			if i > 0 {
				reasons += ", "
			}
			reasons += fmt.Sprintf("%s=%d", reason, s.Dropped[reason])
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", s.Source, s.Read, s.Kept, s.TotalDropped(), reasons)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nareas: %d (skipped %d, outside region %d)\n", r.Areas, r.BoundariesSkipped, r.BoundariesOutside)
	if n := len(r.AreasMissingDeprivation); n > 0 {
		_, _ = fmt.Fprintf(out, "areas without deprivation scores: %d\n", n)
	}
	if n := len(r.AreasMissingPopulation); n > 0 {
		_, _ = fmt.Fprintf(out, "areas without population (rate undefined): %d\n", n)
	}
}

func sortedReasons(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
