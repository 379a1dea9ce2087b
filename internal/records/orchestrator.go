package records

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/areascope/internal/area"
	"github.com/sells-group/areascope/internal/resilience"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// State tracks an orchestrator through its lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateScopesBuilt     State = "scopes_built"
	StateFetching        State = "fetching"
	StateAggregating     State = "aggregating"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
)

// OrchestratorConfig bounds a run.
type OrchestratorConfig struct {
	// Concurrency caps in-flight polygon fetches. Default 4.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// Timeout bounds the whole run (0 = no deadline).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Orchestrator fans one run's scopes out to the fetcher and merges the
// results deterministically. One orchestrator serves one run.
type Orchestrator struct {
	fetcher   Fetcher
	workflow  Workflow
	cfg       OrchestratorConfig
	affluence AffluenceConfig

	mu     sync.Mutex
	state  State
	scopes []Scope
}

// NewOrchestrator builds an orchestrator in the Idle state.
func NewOrchestrator(fetcher Fetcher, workflow Workflow, cfg OrchestratorConfig, affluence AffluenceConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Orchestrator{
		fetcher:   fetcher,
		workflow:  workflow,
		cfg:       cfg,
		affluence: affluence,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(from, to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != from {
		return eris.Errorf("orchestrator: cannot move %s -> %s", o.state, to)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// BuildScopes expands the selection against the document and moves the
// orchestrator to ScopesBuilt.
func (o *Orchestrator) BuildScopes(doc *area.Document, folderNames, polygonNames []string, headOfHousehold bool) error {
	scopes, err := BuildScopes(doc, folderNames, polygonNames, headOfHousehold)
	if err != nil {
		return err
	}
	if err := o.transition(StateIdle, StateScopesBuilt); err != nil {
		return err
	}
	o.mu.Lock()
	o.scopes = scopes
	o.mu.Unlock()
	return nil
}

// scopeOutcome is one scope's result, kept indexed so the merge is
// selection-ordered no matter which fetch finished first.
type scopeOutcome struct {
	records []dataaxle.Record
	summary *InsightSummary
	err     *PolygonError
}

// Run fetches every scope with bounded concurrency and aggregates. A
// scope failure never aborts the others; the terminal state reflects
// how many succeeded.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if err := o.transition(StateScopesBuilt, StateFetching); err != nil {
		return nil, err
	}
	scopes := o.scopes

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	log := zap.L().With(
		zap.String("component", "orchestrator"),
		zap.String("workflow", string(o.workflow)),
	)
	log.Info("run started",
		zap.Int("scopes", len(scopes)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)
	start := time.Now()

	outcomes := make([]scopeOutcome, len(scopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, scope := range scopes {
		g.Go(func() error {
			outcomes[i] = o.fetchScope(gctx, scope)
			// Failures are isolated per scope, never group-fatal.
			return nil
		})
	}
	_ = g.Wait()

	o.setState(StateAggregating)
	result := o.merge(scopes, outcomes)

	o.setState(result.State)
	log.Info("run finished",
		zap.String("state", string(result.State)),
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", len(result.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (o *Orchestrator) fetchScope(ctx context.Context, scope Scope) scopeOutcome {
	fail := func(err error) scopeOutcome {
		fe := resilience.Classify(err)
		zap.L().Warn("polygon fetch failed",
			zap.String("folder", scope.Folder),
			zap.String("polygon", scope.Polygon),
			zap.String("kind", string(fe.Kind)),
			zap.Error(err),
		)
		return scopeOutcome{err: &PolygonError{
			Folder:  scope.Folder,
			Polygon: scope.Polygon,
			Kind:    fe.Kind,
			Message: err.Error(),
			Err:     err,
		}}
	}

	if o.workflow == WorkflowInsights {
		bundle, err := o.fetcher.FetchInsights(ctx, scope)
		if err != nil {
			return fail(err)
		}
		return scopeOutcome{summary: Summarize(bundle, scope.Folder, scope.Polygon, o.affluence)}
	}

	recs, err := o.fetcher.FetchRecords(ctx, scope, o.workflow)
	if err != nil {
		return fail(err)
	}
	return scopeOutcome{records: Label(recs, scope.Folder, scope.Polygon)}
}

// merge folds per-scope outcomes into the terminal result in selection
// order.
func (o *Orchestrator) merge(scopes []Scope, outcomes []scopeOutcome) *Result {
	result := &Result{Workflow: o.workflow, Scopes: len(scopes)}
	for _, out := range outcomes {
		switch {
		case out.err != nil:
			result.Errors = append(result.Errors, *out.err)
		case out.summary != nil:
			result.Summaries = append(result.Summaries, out.summary)
		default:
			result.Records = append(result.Records, out.records...)
		}
	}

	switch {
	case len(result.Errors) == 0:
		result.State = StateCompleted
	case len(result.Errors) == len(scopes):
		result.State = StateFailed
	default:
		result.State = StatePartiallyFailed
	}
	return result
}
