package fetcher

import (
	"strconv"
	"strings"
)

// Table is a header-indexed set of rows, as read from a CSV or XLSX sheet.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a Table. Header names are matched case-insensitively
// and with surrounding whitespace removed.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// Col returns the index of the named column, or -1 if absent.
func (t *Table) Col(name string) int {
	if name == "" {
		return -1
	}
	if i, ok := t.index[normalizeHeader(name)]; ok {
		return i
	}
	return -1
}

// Has reports whether every named column exists.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if t.Col(n) < 0 {
			return false
		}
	}
	return true
}

// Missing returns the subset of names that are not columns of the table.
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if t.Col(n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the trimmed cell at row/column, or "" when out of range.
func Get(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// GetFloat parses the cell at row/column. Thousands separators are accepted.
func GetFloat(row []string, col int) (float64, bool) {
	v := strings.ReplaceAll(Get(row, col), ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
