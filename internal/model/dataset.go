package model

// Dataset is the merged output of the prepare step and the in-memory state of the dashboard.
type Dataset struct {
	Areas     []Area     `json:"areas"`
	Incidents []Incident `json:"incidents"`
	Venues    []Venue    `json:"venues"`
}

// AreaByCode indexes areas by their code.
func (d *Dataset) AreaByCode() map[string]*Area {
	idx := make(map[string]*Area, len(d.Areas))
	for i := range d.Areas {
		idx[d.Areas[i].Code] = &d.Areas[i]
	}
	return idx
}

// CrimeCounts returns the number of incidents per area code.
func (d *Dataset) CrimeCounts() map[string]int {
	counts := make(map[string]int, len(d.Areas))
	for _, inc := range d.Incidents {
		counts[inc.AreaCode]++
	}
	return counts
}
