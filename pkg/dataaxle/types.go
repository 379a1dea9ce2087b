package dataaxle

import "fmt"

// Dataset selects which provider collection a call targets.
type Dataset string

const (
	// DatasetPlaces holds business records.
	DatasetPlaces Dataset = "places"
	// DatasetPeople holds consumer records.
	DatasetPeople Dataset = "people"
)

// packageFor returns the enrichment package each dataset is queried
// with.
func packageFor(d Dataset) string {
	if d == DatasetPlaces {
		return "enhanced_v2"
	}
	return "enhanced"
}

// Record is a single provider document. Field sets differ per dataset
// and package, so records stay schemaless.
type Record map[string]any

// Point extracts the record's coordinates, reporting ok=false when
// either coordinate is absent or not numeric.
func (r Record) Point() (lng, lat float64, ok bool) {
	lat, latOK := toFloat(r["latitude"])
	lng, lngOK := toFloat(r["longitude"])
	return lng, lat, latOK && lngOK
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ScanResult is the response to an initial scan call. It carries the
// match count and a scroll token; documents arrive on scroll pages
// only.
type ScanResult struct {
	Count    int    `json:"count"`
	ScrollID string `json:"scroll_id"`
}

// ScrollPage is one page of documents from a scroll. An empty
// Documents slice marks the end of the scroll.
type ScrollPage struct {
	Documents []Record `json:"documents"`
	ScrollID  string   `json:"scroll_id"`
}

// CalcKind names the aggregate computation an insights call requests.
type CalcKind string

const (
	CalcFrequencies CalcKind = "frequencies"
	CalcUniqueCount CalcKind = "unique_count"
	CalcFillCount   CalcKind = "fill_count"
)

// InsightCalc requests one aggregate computation over one field.
type InsightCalc struct {
	Kind  CalcKind
	Field string
}

// Bucket is one frequency bucket. Range-valued fields carry Lower and
// Upper bounds; categorical fields carry Value only.
type Bucket struct {
	Value string  `json:"value,omitempty"`
	Lower float64 `json:"lower,omitempty"`
	Upper float64 `json:"upper,omitempty"`
	Count int     `json:"count"`
}

// InsightResult is the response to a single insights calculation.
type InsightResult struct {
	Count       int      `json:"count"`
	Buckets     []Bucket `json:"buckets,omitempty"`
	UniqueCount int      `json:"unique_count,omitempty"`
	FillCount   int      `json:"fill_count,omitempty"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("dataaxle: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("dataaxle: %s", e.Status)
}

// HTTPStatus exposes the status code for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }
