package records

import (
	"github.com/sells-group/areascope/internal/resilience"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// PolygonError reports one scope's failure.
type PolygonError struct {
	Folder  string                    `json:"folder"`
	Polygon string                    `json:"polygon"`
	Kind    resilience.FetchErrorKind `json:"kind"`
	Message string                    `json:"message"`
	Err     error                     `json:"-"`
}

// PolygonRecords is one scope's raw-record output.
type PolygonRecords struct {
	Folder  string            `json:"folder"`
	Polygon string            `json:"polygon"`
	Records []dataaxle.Record `json:"records"`
}

// Result is the terminal output of a run. Records and Summaries are
// ordered by selection order regardless of completion order.
type Result struct {
	Workflow  Workflow          `json:"workflow"`
	State     State             `json:"state"`
	Scopes    int               `json:"scopes"`
	Records   []dataaxle.Record `json:"records,omitempty"`
	Summaries []*InsightSummary `json:"summaries,omitempty"`
	Errors    []PolygonError    `json:"errors,omitempty"`
}

// Succeeded returns the number of scopes that completed.
func (r *Result) Succeeded() int {
	return r.Scopes - len(r.Errors)
}
