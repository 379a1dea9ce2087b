package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/internal/area"
	"github.com/sells-group/areascope/internal/export"
	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// newProviderClient builds the records-provider client from config.
func newProviderClient() dataaxle.Client {
	opts := []dataaxle.Option{
		dataaxle.WithRetry(cfg.Retry.Resilience()),
	}
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, dataaxle.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.RateRequests > 0 && cfg.Provider.RateWindow > 0 {
		opts = append(opts, dataaxle.WithRateLimit(cfg.Provider.RateRequests, cfg.Provider.RateWindow))
	}
	if cfg.Provider.TimeoutSecs > 0 {
		opts = append(opts, dataaxle.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		}))
	}
	return dataaxle.NewClient(cfg.Provider.Token, opts...)
}

// requireToken rejects provider-backed commands when no token is configured.
func requireToken() error {
	if cfg.Provider.Token == "" {
		return eris.New("provider token is not configured (set AREASCOPE_PROVIDER_TOKEN or provider.token in config.yaml)")
	}
	return nil
}

// parseAreaFile reads an area file from disk and parses it.
func parseAreaFile(path string) (*area.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return area.NewParser(cfg.Area.MaxRingPoints).Parse(data, filepath.Base(path))
}

// runWorkflow fans the selected folders out to the provider and waits for
// the merged result.
func runWorkflow(ctx context.Context, doc *area.Document, wf records.Workflow, folders, polygons []string, headOfHousehold bool) (*records.Result, error) {
	fetcher := records.NewFetcher(newProviderClient(), cfg.Fetch)
	orch := records.NewOrchestrator(fetcher, wf, cfg.Orchestrator, cfg.Affluence)
	if err := orch.BuildScopes(doc, folders, polygons, headOfHousehold); err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

// writeResult renders a run result in the requested format.
func writeResult(w io.Writer, doc *area.Document, res *records.Result, format string) error {
	switch format {
	case "csv":
		if res.Workflow == records.WorkflowInsights {
			return export.WriteSummariesCSV(w, res.Summaries)
		}
		return export.WriteRecordsCSV(w, res.Records)
	case "xlsx":
		if res.Workflow == records.WorkflowInsights {
			return export.WriteSummariesXLSX(w, res.Summaries)
		}
		return export.WriteRecordsXLSX(w, res.Records)
	case "kml":
		if res.Workflow == records.WorkflowInsights {
			return export.WriteSummariesKML(w, doc, res.Summaries)
		}
		return export.WriteRecordsKML(w, res.Records, res.Workflow)
	default:
		return eris.Errorf("unknown output format %q (want csv, xlsx, or kml)", format)
	}
}

// writeResultFile writes a run result to the given path, deriving a default
// name from the base and format when path is empty.
func writeResultFile(path, base string, doc *area.Document, res *records.Result, format string) (string, error) {
	if path == "" {
		path = base + "." + format
	}
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "create %s", path)
	}
	if err := writeResult(f, doc, res, format); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// reportScopeErrors prints per-polygon failures to stderr.
func reportScopeErrors(w io.Writer, res *records.Result) {
	for _, pe := range res.Errors {
		_, _ = io.WriteString(w, "failed "+pe.Folder+" / "+pe.Polygon+" ("+string(pe.Kind)+"): "+pe.Message+"\n")
	}
}
