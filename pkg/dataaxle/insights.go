package dataaxle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
)

type insightsRequest struct {
	Filter   Filter           `json:"filter"`
	Insights insightsEnvelope `json:"insights"`
}

type insightsEnvelope struct {
	Calculations []map[string]any `json:"calculations"`
}

// Insights runs one aggregate calculation over records matching the
// filter. Each metric is its own call so failures degrade per metric.
func (c *client) Insights(ctx context.Context, dataset Dataset, filter Filter, calc InsightCalc) (*InsightResult, error) {
	u := fmt.Sprintf("%s/%s/insights", c.baseURL, dataset)
	body := insightsRequest{
		Filter: filter,
		Insights: insightsEnvelope{
			Calculations: []map[string]any{
				{string(calc.Kind): map[string]string{"field": calc.Field}},
			},
		},
	}

	var out InsightResult
	if err := c.doJSON(ctx, http.MethodPost, u, body, &out); err != nil {
		return nil, eris.Wrapf(err, "insights %s %s(%s)", dataset, calc.Kind, calc.Field)
	}
	return &out, nil
}
