package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/iati3w/internal/schema"
)

func ptr(s string) *string { return &s }

func sampleActivities() []schema.Activity {
	return []schema.Activity{
		{
			IATIIdentifier: ptr("A"),
			ActivityStatus: schema.Status{Code: ptr("2"), Label: ptr("Implementation")},
			ReportingOrg:   schema.Org{TypeLabel: ptr("Multilateral")},
			Sectors:        schema.Sectors{"1": {"72040": {}}},
		},
		{
			IATIIdentifier: ptr("B"),
			ActivityStatus: schema.Status{Code: ptr("2"), Label: ptr("Implementation")},
			ReportingOrg:   schema.Org{TypeLabel: ptr("International NGO")},
			Sectors:        schema.Sectors{"10": {"1": {}}},
		},
		{
			IATIIdentifier: ptr("C"),
			ActivityStatus: schema.Status{Code: ptr("4"), Label: ptr("Closed")},
			Sectors:        schema.Sectors{"1": {"12220": {}}},
		},
		{
			IATIIdentifier: ptr("D"),
		},
		{
			IATIIdentifier: ptr("E"),
			Humanitarian:   true,
		},
	}
}

func TestBuild(t *testing.T) {
	s := Build(sampleActivities())
	assert.Equal(t, 5, s.ActivityCount)
	assert.Equal(t, map[string]int{"Implementation": 2, "Closed": 1, NotReported: 2}, s.ByStatus)
	assert.Equal(t, map[string]int{"Multilateral": 1, "International NGO": 1, NotReported: 3}, s.ByReportingType)
}

func TestBuild_Empty(t *testing.T) {
	s := Build(nil)
	assert.Equal(t, 0, s.ActivityCount)
	assert.Empty(t, s.ByStatus)
}

func TestFilterByStatus(t *testing.T) {
	acts := sampleActivities()
	assert.Len(t, FilterByStatus(acts, nil), 5)

	got := FilterByStatus(acts, []string{"4"})
	assert.Len(t, got, 1)
	assert.Equal(t, "C", got[0].Identifier())

	assert.Len(t, FilterByStatus(acts, []string{"2", "4"}), 3)
	assert.Empty(t, FilterByStatus(acts, []string{"6"}))
}

func TestIsHumanitarian(t *testing.T) {
	acts := sampleActivities()
	tests := []struct {
		id   string
		want bool
	}{
		{"A", true},
		{"B", true},
		{"C", false},
		{"D", false},
		{"E", true},
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHumanitarian(acts[i]))
		})
	}
	assert.Len(t, FilterHumanitarian(acts), 3)
}
