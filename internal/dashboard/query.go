package dashboard

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/crime-atlas/internal/analysis"
	"github.com/sells-group/crime-atlas/internal/model"
)

// badRequest marks errors caused by the request rather than the server.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// request is the parsed view state shared by every endpoint.
type request struct {
	Filter analysis.Filter
	Metric string
}

// parseRequest reads start, end, crime and metric from the query. Missing
// bounds default to the dataset range. Without any crime parameter the
// default selection for the chosen window applies; "crime=" with no value
// selects nothing.
func (s *Server) parseRequest(q url.Values) (request, error) {
	var req request

	start, err := parseMonth(q.Get("start"), s.first)
	if err != nil {
		return req, err
	}
	end, err := parseMonth(q.Get("end"), s.last)
	if err != nil {
		return req, err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return req, badRequestf("start must not be after end")
	}
	req.Filter.Start, req.Filter.End = start, end

	if crimes, ok := q["crime"]; ok {
		req.Filter.Categories = make([]string, 0, len(crimes))
		for _, c := range crimes {
			if c = strings.TrimSpace(c); c != "" {
				req.Filter.Categories = append(req.Filter.Categories, c)
			}
		}
	} else {
		window := analysis.Window(s.ds.Incidents, req.Filter)
		req.Filter.Categories = analysis.DefaultFilter(window, s.defaults).Categories
	}

	req.Metric = q.Get("metric")
	if req.Metric == "" {
		req.Metric = model.MetricCrimeRate
	}
	if _, ok := analysis.LookupMetric(req.Metric); !ok {
		return req, badRequestf("unknown metric %q", req.Metric)
	}
	return req, nil
}

func parseMonth(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(model.MonthLayout, s)
	if err != nil {
		return time.Time{}, badRequestf("months must be formatted YYYY-MM")
	}
	return t, nil
}

// key is the canonical cache key of the request. Category order does not
// matter to any view, so it is sorted.
func (r request) key(extra ...string) string {
	cats := append([]string(nil), r.Filter.Categories...)
	sort.Strings(cats)

	v := url.Values{}
	v.Set("start", monthString(r.Filter.Start))
	v.Set("end", monthString(r.Filter.End))
	v.Set("metric", r.Metric)
	v.Set("crime", strings.Join(cats, "\x1f"))
	for i := 0; i+1 < len(extra); i += 2 {
		v.Set(extra[i], extra[i+1])
	}
	return v.Encode()
}

func monthString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.MonthLayout)
}
