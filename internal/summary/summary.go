package summary

import (
	"github.com/samber/lo"

	"github.com/dshills/iati3w/internal/schema"
)

// NotReported is the count key for activities with no code at all.
const NotReported = "Not reported"

// Build computes the report summary from all activities.
func Build(activities []schema.Activity) schema.Summary {
	return schema.Summary{
		ActivityCount:   len(activities),
		ByStatus:        CountBy(activities, func(a schema.Activity) *string { return a.ActivityStatus.Label }),
		ByReportingType: CountBy(activities, func(a schema.Activity) *string { return a.ReportingOrg.TypeLabel }),
	}
}

// CountBy tallies activities by the label key returns, counting nil labels
// under NotReported.
func CountBy(activities []schema.Activity, key func(schema.Activity) *string) map[string]int {
	counts := map[string]int{}
	for _, a := range activities {
		label := NotReported
		if l := key(a); l != nil {
			label = *l
		}
		counts[label]++
	}
	return counts
}

// FilterByStatus returns only activities whose status code is one of codes.
// An empty codes list keeps every activity.
func FilterByStatus(activities []schema.Activity, codes []string) []schema.Activity {
	if len(codes) == 0 {
		return activities
	}
	return lo.Filter(activities, func(a schema.Activity, _ int) bool {
		return a.ActivityStatus.Code != nil && lo.Contains(codes, *a.ActivityStatus.Code)
	})
}

// FilterHumanitarian keeps activities flagged humanitarian, or carrying a
// sector in the humanitarian clusters vocabulary (10) or an OECD DAC
// 720xx/730xx/740xx emergency response code.
func FilterHumanitarian(activities []schema.Activity) []schema.Activity {
	return lo.Filter(activities, func(a schema.Activity, _ int) bool {
		return IsHumanitarian(a)
	})
}

// IsHumanitarian reports whether a carries the humanitarian flag or a
// humanitarian sector.
func IsHumanitarian(a schema.Activity) bool {
	if a.Humanitarian {
		return true
	}
	if len(a.Sectors[clusterVocabulary]) > 0 {
		return true
	}
	for code := range a.Sectors[dacVocabulary] {
		if len(code) == 5 && lo.Contains(humanitarianDACPrefixes, code[:3]) {
			return true
		}
	}
	return false
}

const (
	dacVocabulary     = "1"
	clusterVocabulary = "10"
)

var humanitarianDACPrefixes = []string{"720", "730", "740"}
