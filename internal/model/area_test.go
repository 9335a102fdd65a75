package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrimeRate(t *testing.T) {
	r := CrimeRate(15, 1500)
	require.NotNil(t, r)
	assert.InDelta(t, 10.0, *r, 1e-9)

	assert.Nil(t, CrimeRate(4, 0))
	assert.Nil(t, CrimeRate(4, -1))

	zero := CrimeRate(0, 1200)
	require.NotNil(t, zero)
	assert.Zero(t, *zero)
}

func TestAreaStats_Value(t *testing.T) {
	s := AreaStats{
		Area:        Area{Code: "E01014485", IMDScore: 41.2, Income: 0.31, Employment: 0.22, Education: 55.1},
		TotalCrimes: 30,
		CrimeRate:   CrimeRate(30, 1500),
	}

	v, ok := s.Value(MetricCrimeRate)
	require.True(t, ok)
	assert.InDelta(t, 20.0, v, 1e-9)

	v, ok = s.Value(MetricIncome)
	require.True(t, ok)
	assert.InDelta(t, 0.31, v, 1e-9)

	v, ok = s.Value(MetricEducation)
	require.True(t, ok)
	assert.InDelta(t, 55.1, v, 1e-9)

	_, ok = s.Value("Bogus")
	assert.False(t, ok)

	s.CrimeRate = nil
	_, ok = s.Value(MetricCrimeRate)
	assert.False(t, ok)
}

func TestArea_NoDeprivation(t *testing.T) {
	a := Area{Code: "E01014490", Population: 1400, NoDeprivation: true}

	for _, m := range []string{MetricIMDScore, MetricIncome, MetricEmployment, MetricEducation, MetricHealth, MetricCrime} {
		_, ok := a.Score(m)
		assert.False(t, ok, m)
		assert.Nil(t, a.ScoreOf(m), m)
	}

	s := AreaStats{Area: a, CrimeRate: CrimeRate(7, a.Population)}
	_, ok := s.Value(MetricCrimeRate)
	assert.True(t, ok, "rate does not depend on deprivation")

	b := Area{IMDScore: 0}
	v := b.ScoreOf(MetricIMDScore)
	require.NotNil(t, v, "a real zero score stays defined")
	assert.Zero(t, *v)
}

func TestIsScore(t *testing.T) {
	assert.True(t, IsScore(MetricIMDScore))
	assert.True(t, IsScore(MetricCrime))
	assert.False(t, IsScore(MetricCrimeRate))
	assert.False(t, IsScore(MetricNone))
}

func TestAreaLabel(t *testing.T) {
	assert.Equal(t, "Stokes Croft", Area{Name: "Bristol 032B", LocalName: "Stokes Croft"}.Label())
	assert.Equal(t, "Bristol 032B", Area{Name: "Bristol 032B"}.Label())
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, 3, 17, 22, 5, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestDataset_AreaByCode(t *testing.T) {
	ds := &Dataset{Areas: []Area{{Code: "A"}, {Code: "B", Population: 10}}}
	idx := ds.AreaByCode()
	require.Len(t, idx, 2)
	assert.InDelta(t, 10.0, idx["B"].Population, 0)

	idx["B"].Population = 20
	assert.InDelta(t, 20.0, ds.Areas[1].Population, 0)
}

func TestDataset_CrimeCounts(t *testing.T) {
	ds := &Dataset{Incidents: []Incident{{AreaCode: "E1"}, {AreaCode: "E2"}, {AreaCode: "E1"}}}
	assert.Equal(t, map[string]int{"E1": 2, "E2": 1}, ds.CrimeCounts())
}
