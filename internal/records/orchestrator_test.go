package records

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/areascope/internal/area"
	"github.com/sells-group/areascope/internal/resilience"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

type stubStatusErr struct{ status int }

func (e *stubStatusErr) Error() string   { return "provider error" }
func (e *stubStatusErr) HTTPStatus() int { return e.status }

// fakeFetcher returns canned per-polygon results and tracks concurrency.
type fakeFetcher struct {
	mu        sync.Mutex
	records   map[string][]dataaxle.Record
	bundles   map[string]*InsightBundle
	errs      map[string]error
	delay     time.Duration
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	callCount atomic.Int32
}

func (f *fakeFetcher) track() func() {
	cur := f.inFlight.Add(1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	f.callCount.Add(1)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeFetcher) FetchRecords(ctx context.Context, scope Scope, _ Workflow) ([]dataaxle.Record, error) {
	defer f.track()()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[scope.Polygon]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[scope.Polygon], nil
}

func (f *fakeFetcher) FetchInsights(ctx context.Context, scope Scope) (*InsightBundle, error) {
	defer f.track()()
	if err := f.errs[scope.Polygon]; err != nil {
		return nil, err
	}
	return f.bundles[scope.Polygon], nil
}

func testDocument(t *testing.T, folders ...string) *area.Document {
	t.Helper()
	doc := &area.Document{Format: area.FormatKML}
	for i, name := range folders {
		doc.Folders = append(doc.Folders, area.Folder{
			Name:    name,
			Ordinal: i,
			Polygons: []area.Polygon{
				{Name: name + "-poly", Geom: squareAt(float64(i * 10))},
			},
		})
	}
	return doc
}

func newOrch(f Fetcher, wf Workflow) *Orchestrator {
	return NewOrchestrator(f, wf,
		OrchestratorConfig{Concurrency: 2},
		DefaultAffluenceConfig(),
	)
}

func TestOrchestratorLifecycle(t *testing.T) {
	f := &fakeFetcher{records: map[string][]dataaxle.Record{
		"A-poly": {{"name": "biz"}},
	}}
	o := newOrch(f, WorkflowBusiness)
	assert.Equal(t, StateIdle, o.State())

	doc := testDocument(t, "A")
	require.NoError(t, o.BuildScopes(doc, nil, nil, false))
	assert.Equal(t, StateScopesBuilt, o.State())

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, o.State())
	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "A", res.Records[0]["source_folder"])
	assert.Equal(t, "A-poly", res.Records[0]["source_polygon"])
}

func TestOrchestratorRunRequiresScopes(t *testing.T) {
	o := newOrch(&fakeFetcher{}, WorkflowBusiness)
	_, err := o.Run(context.Background())
	require.Error(t, err)
}

func TestOrchestratorFailureIsolation(t *testing.T) {
	f := &fakeFetcher{
		records: map[string][]dataaxle.Record{
			"A-poly": {{"id": 1}},
			"C-poly": {{"id": 3}},
		},
		errs: map[string]error{
			"B-poly": &stubStatusErr{status: 403},
		},
	}
	o := newOrch(f, WorkflowBusiness)
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B", "C"), nil, nil, false))

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatePartiallyFailed, res.State)
	assert.Len(t, res.Records, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "B-poly", res.Errors[0].Polygon)
	assert.Equal(t, resilience.Permanent, res.Errors[0].Kind)
}

func TestOrchestratorAllFail(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		"A-poly": errors.New("boom"),
		"B-poly": errors.New("boom"),
	}}
	o := newOrch(f, WorkflowBusiness)
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B"), nil, nil, false))

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Succeeded())
}

func TestOrchestratorSelectionOrderMerge(t *testing.T) {
	// The slower first scope must still come first in the merge.
	f := &fakeFetcher{
		records: map[string][]dataaxle.Record{
			"A-poly": {{"id": "a"}},
			"B-poly": {{"id": "b"}},
		},
	}
	slow := &orderedFetcher{inner: f, slowPolygon: "A-poly"}

	o := newOrch(slow, WorkflowBusiness)
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B"), nil, nil, false))

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "a", res.Records[0]["id"])
	assert.Equal(t, "b", res.Records[1]["id"])
}

type orderedFetcher struct {
	inner       Fetcher
	slowPolygon string
}

func (f *orderedFetcher) FetchRecords(ctx context.Context, scope Scope, wf Workflow) ([]dataaxle.Record, error) {
	if scope.Polygon == f.slowPolygon {
		time.Sleep(30 * time.Millisecond)
	}
	return f.inner.FetchRecords(ctx, scope, wf)
}

func (f *orderedFetcher) FetchInsights(ctx context.Context, scope Scope) (*InsightBundle, error) {
	return f.inner.FetchInsights(ctx, scope)
}

func TestOrchestratorConcurrencyBound(t *testing.T) {
	f := &fakeFetcher{
		delay:   20 * time.Millisecond,
		records: map[string][]dataaxle.Record{},
	}
	o := NewOrchestrator(f, WorkflowBusiness,
		OrchestratorConfig{Concurrency: 2}, DefaultAffluenceConfig())
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B", "C", "D", "E"), nil, nil, false))

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(5), f.callCount.Load())
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(2))
}

func TestOrchestratorDeadline(t *testing.T) {
	f := &fakeFetcher{delay: time.Second}
	o := NewOrchestrator(f, WorkflowBusiness,
		OrchestratorConfig{Concurrency: 2, Timeout: 30 * time.Millisecond},
		DefaultAffluenceConfig())
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B"), nil, nil, false))

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	for _, pe := range res.Errors {
		assert.Equal(t, resilience.Cancelled, pe.Kind)
	}
}

func TestOrchestratorInsights(t *testing.T) {
	f := &fakeFetcher{bundles: map[string]*InsightBundle{
		"A-poly": fullBundle(),
		"B-poly": fullBundle(),
	}}
	o := newOrch(f, WorkflowInsights)
	require.NoError(t, o.BuildScopes(testDocument(t, "A", "B"), nil, nil, false))

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, "A", res.Summaries[0].Folder)
	assert.Equal(t, "B", res.Summaries[1].Folder)
	assert.Equal(t, res.Summaries[0].AffluenceScore, res.Summaries[1].AffluenceScore)
	assert.Greater(t, res.Summaries[0].AffluenceScore, 0.0)
}
