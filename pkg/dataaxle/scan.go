package dataaxle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/sells-group/areascope/internal/resilience"
)

type scanRequest struct {
	Filter   Filter `json:"filter"`
	Packages string `json:"packages"`
}

// Scan opens a scroll over every record matching the filter. The
// response carries only the match count and scroll token; call Scroll
// to page through documents.
func (c *client) Scan(ctx context.Context, dataset Dataset, filter Filter) (*ScanResult, error) {
	u := fmt.Sprintf("%s/%s/scan", c.baseURL, dataset)
	body := scanRequest{Filter: filter, Packages: packageFor(dataset)}

	var out ScanResult
	if err := c.doJSON(ctx, http.MethodPost, u, body, &out); err != nil {
		return nil, eris.Wrapf(err, "scan %s", dataset)
	}
	if out.Count > 0 && out.ScrollID == "" {
		return nil, resilience.NewFetchError(resilience.Permanent, 0,
			eris.New("dataaxle: scan response missing scroll_id"))
	}
	return &out, nil
}

// Scroll fetches the next page of an open scroll. An empty Documents
// slice marks the end of the scroll.
func (c *client) Scroll(ctx context.Context, dataset Dataset, scrollID string) (*ScrollPage, error) {
	u := fmt.Sprintf("%s/%s/scan/%s?packages=%s",
		c.baseURL, dataset, url.PathEscape(scrollID), packageFor(dataset))

	var out ScrollPage
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "scroll %s", dataset)
	}
	return &out, nil
}
