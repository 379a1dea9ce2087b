// Package records turns selected polygons into provider queries, runs
// them concurrently, and aggregates the results.
package records

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/pkg/dataaxle"
)

// Workflow selects what a run fetches for each polygon.
type Workflow string

const (
	// WorkflowBusiness fetches business records from the places dataset.
	WorkflowBusiness Workflow = "business"
	// WorkflowConsumer fetches consumer records from the people dataset.
	WorkflowConsumer Workflow = "consumer"
	// WorkflowInsights fetches aggregate demographic metrics instead of
	// raw records.
	WorkflowInsights Workflow = "insights"
)

// ParseWorkflow validates a workflow name from config or CLI input.
func ParseWorkflow(s string) (Workflow, error) {
	switch Workflow(s) {
	case WorkflowBusiness, WorkflowConsumer, WorkflowInsights:
		return Workflow(s), nil
	default:
		return "", eris.Errorf("unknown workflow %q (want business, consumer, or insights)", s)
	}
}

// Dataset returns the provider dataset raw-record workflows read from.
func (w Workflow) Dataset() dataaxle.Dataset {
	if w == WorkflowBusiness {
		return dataaxle.DatasetPlaces
	}
	return dataaxle.DatasetPeople
}
