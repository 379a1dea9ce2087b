package records

import (
	"fmt"
	"sort"

	"github.com/sells-group/areascope/pkg/dataaxle"
)

// Label tags each record with its source folder and polygon. Records
// are tagged in place; no cross-polygon deduplication is performed, so
// a record inside overlapping polygons appears once per polygon.
func Label(records []dataaxle.Record, folder, polygon string) []dataaxle.Record {
	for _, r := range records {
		r["source_folder"] = folder
		r["source_polygon"] = polygon
	}
	return records
}

// ValueCount is one entry of a summarized distribution.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// InsightSummary is the aggregated view of one polygon's metrics.
type InsightSummary struct {
	Folder  string `json:"folder"`
	Polygon string `json:"polygon"`

	HouseholdCount int `json:"household_count"`
	BusinessCount  int `json:"business_count"`

	IncomeDistribution    []ValueCount `json:"income_distribution,omitempty"`
	HomeValueDistribution []ValueCount `json:"home_value_distribution,omitempty"`
	WealthDistribution    []ValueCount `json:"wealth_distribution,omitempty"`
	OwnershipDistribution []ValueCount `json:"ownership_distribution,omitempty"`
	EducationDistribution []ValueCount `json:"education_distribution,omitempty"`
	LanguageDistribution  []ValueCount `json:"language_distribution,omitempty"`
	BusinessCategories    []ValueCount `json:"business_categories,omitempty"`

	OwnershipRate  float64 `json:"ownership_rate"`
	AffluenceScore float64 `json:"affluence_score"`

	MissingMetrics []string `json:"missing_metrics,omitempty"`
}

// Summarize aggregates a metric bundle into a summary with the
// affluence score applied.
func Summarize(b *InsightBundle, folder, polygon string, cfg AffluenceConfig) *InsightSummary {
	s := &InsightSummary{
		Folder:         folder,
		Polygon:        polygon,
		HouseholdCount: b.HouseholdCount,
		BusinessCount:  b.BusinessCount,

		IncomeDistribution:    summarizeBuckets(b.Income),
		HomeValueDistribution: summarizeBuckets(b.HomeValue),
		WealthDistribution:    summarizeBuckets(b.Wealth),
		OwnershipDistribution: summarizeBuckets(b.Ownership),
		EducationDistribution: summarizeBuckets(b.Education),
		LanguageDistribution:  summarizeBuckets(b.Language),
		BusinessCategories:    summarizeBuckets(b.BusinessCategories),

		MissingMetrics: b.Missing,
		AffluenceScore: Score(b, cfg),
	}
	if rate, ok := ownershipRate(b.Ownership); ok {
		s.OwnershipRate = rate
	}
	return s
}

// summarizeBuckets converts provider buckets to labeled counts sorted
// by count descending, value ascending for ties.
func summarizeBuckets(buckets []dataaxle.Bucket) []ValueCount {
	if len(buckets) == 0 {
		return nil
	}
	out := make([]ValueCount, 0, len(buckets))
	for _, bk := range buckets {
		out = append(out, ValueCount{Value: BucketLabel(bk), Count: bk.Count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// BucketLabel renders a bucket label: the categorical value when
// present, otherwise "<lower>_<upper>" ("<lower>_plus" for open-ended
// top buckets).
func BucketLabel(bk dataaxle.Bucket) string {
	if bk.Value != "" {
		return bk.Value
	}
	if bk.Upper <= bk.Lower {
		return fmt.Sprintf("%.0f_plus", bk.Lower)
	}
	return fmt.Sprintf("%.0f_%.0f", bk.Lower, bk.Upper)
}
