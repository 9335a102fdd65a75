package model

// Venue is a night-time economy premises (pub, bar, club, restaurant).
type Venue struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AreaCode  string  `json:"area_code,omitempty"`
}
