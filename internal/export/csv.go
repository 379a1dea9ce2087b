// Package export renders run results as CSV, XLSX, and KML.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// leadColumns are pinned to the front of every record header; all other
// columns follow sorted.
var leadColumns = []string{"source_folder", "source_polygon"}

// RecordTable flattens records into a header plus rows. The header is
// the union of keys across all records so sparse fields still get a
// column; missing values render empty.
func RecordTable(recs []dataaxle.Record) (header []string, rows [][]string) {
	flat := make([]map[string]string, 0, len(recs))
	keys := map[string]bool{}
	for _, r := range recs {
		f := map[string]string{}
		flattenInto(f, "", r)
		for k := range f {
			keys[k] = true
		}
		flat = append(flat, f)
	}

	header = orderedHeader(keys)
	rows = make([][]string, 0, len(flat))
	for _, f := range flat {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = f[k]
		}
		rows = append(rows, row)
	}
	return header, rows
}

// flattenInto dots nested maps ("address.city") and joins list values
// with "; ".
func flattenInto(dst map[string]string, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
			dst[key] = ""
		case map[string]any:
			flattenInto(dst, key, val)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, formatScalar(item))
			}
			dst[key] = strings.Join(parts, "; ")
		default:
			dst[key] = formatScalar(val)
		}
	}
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func orderedHeader(keys map[string]bool) []string {
	header := make([]string, 0, len(leadColumns))
	for _, k := range leadColumns {
		if keys[k] {
			header = append(header, k)
			delete(keys, k)
		}
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(header, rest...)
}

// WriteRecordsCSV writes flattened records as CSV.
func WriteRecordsCSV(w io.Writer, recs []dataaxle.Record) error {
	header, rows := RecordTable(recs)
	return writeCSV(w, header, rows)
}

// SummaryTable flattens insight summaries into a header plus rows.
// Distribution buckets become columns ("income_50000_75000",
// "home_owners", "non_home_owners"); the header is the sorted union of
// keys with the identity and score columns pinned first.
func SummaryTable(summaries []*records.InsightSummary) (header []string, rows [][]string) {
	lead := []string{
		"folder", "polygon", "household_count", "business_count",
		"ownership_rate", "affluence_score",
	}

	flat := make([]map[string]string, 0, len(summaries))
	keys := map[string]bool{}
	for _, s := range summaries {
		f := map[string]string{
			"folder":          s.Folder,
			"polygon":         s.Polygon,
			"household_count": fmt.Sprintf("%d", s.HouseholdCount),
			"business_count":  fmt.Sprintf("%d", s.BusinessCount),
			"ownership_rate":  fmt.Sprintf("%.4f", s.OwnershipRate),
			"affluence_score": fmt.Sprintf("%.2f", s.AffluenceScore),
		}
		addDistribution(f, "income_", s.IncomeDistribution)
		addDistribution(f, "home_value_", s.HomeValueDistribution)
		addDistribution(f, "wealth_", s.WealthDistribution)
		addOwnership(f, s.OwnershipDistribution)
		addDistribution(f, "education_", s.EducationDistribution)
		addDistribution(f, "language_", s.LanguageDistribution)
		addDistribution(f, "category_", s.BusinessCategories)
		if len(s.MissingMetrics) > 0 {
			f["missing_metrics"] = strings.Join(s.MissingMetrics, "; ")
		}

		for k := range f {
			keys[k] = true
		}
		flat = append(flat, f)
	}

	for _, k := range lead {
		delete(keys, k)
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	header = append(append([]string{}, lead...), rest...)

	rows = make([][]string, 0, len(flat))
	for _, f := range flat {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = f[k]
		}
		rows = append(rows, row)
	}
	return header, rows
}

func addDistribution(dst map[string]string, prefix string, dist []records.ValueCount) {
	for _, vc := range dist {
		dst[prefix+sanitizeColumn(vc.Value)] = fmt.Sprintf("%d", vc.Count)
	}
}

// addOwnership mirrors the fixed owner/renter column pair.
func addOwnership(dst map[string]string, dist []records.ValueCount) {
	if len(dist) == 0 {
		return
	}
	owners, renters := 0, 0
	for _, vc := range dist {
		v := strings.ToLower(vc.Value)
		if strings.Contains(v, "owner") && !strings.Contains(v, "non") {
			owners += vc.Count
		} else {
			renters += vc.Count
		}
	}
	dst["home_owners"] = fmt.Sprintf("%d", owners)
	dst["non_home_owners"] = fmt.Sprintf("%d", renters)
}

func sanitizeColumn(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-' || r == '.':
			return '_'
		default:
			return -1
		}
	}, s)
}

// WriteSummariesCSV writes insight summaries as CSV.
func WriteSummariesCSV(w io.Writer, summaries []*records.InsightSummary) error {
	header, rows := SummaryTable(summaries)
	return writeCSV(w, header, rows)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}
