package model

import "time"

// MonthLayout is the police.uk month format ("2024-03").
const MonthLayout = "2006-01"

// Incident is a single recorded crime resolved to the area that contains it.
type Incident struct {
	ID        string    `json:"id,omitempty"`
	Month     time.Time `json:"month"`
	Category  string    `json:"category"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Location  string    `json:"location,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	AreaCode  string    `json:"area_code"`
}

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
