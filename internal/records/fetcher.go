package records

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/areascope/pkg/dataaxle"
)

// Fetcher retrieves provider data for one scope. Implementations must
// be safe for concurrent use.
type Fetcher interface {
	// FetchRecords pages through every record matching the scope.
	FetchRecords(ctx context.Context, scope Scope, workflow Workflow) ([]dataaxle.Record, error)

	// FetchInsights collects the aggregate metric bundle for the scope.
	FetchInsights(ctx context.Context, scope Scope) (*InsightBundle, error)
}

// DefaultMaxPages caps scroll pages per polygon when the config does
// not say otherwise, so a provider that never returns an empty page
// cannot stall a run.
const DefaultMaxPages = 1000

// FetchConfig bounds a single polygon's fetch.
type FetchConfig struct {
	// MaxPages caps scroll pages per polygon (0 = DefaultMaxPages,
	// negative = unlimited).
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// MaxResults caps records per polygon (0 = unlimited).
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
}

// InsightBundle holds the per-polygon metric set. Metrics whose calls
// failed are absent and listed in Missing.
type InsightBundle struct {
	HouseholdCount     int
	BusinessCount      int
	Income             []dataaxle.Bucket
	HomeValue          []dataaxle.Bucket
	Wealth             []dataaxle.Bucket
	Ownership          []dataaxle.Bucket
	Education          []dataaxle.Bucket
	Language           []dataaxle.Bucket
	BusinessCategories []dataaxle.Bucket
	Missing            []string
}

type providerFetcher struct {
	client dataaxle.Client
	cfg    FetchConfig
}

// NewFetcher returns a provider-backed Fetcher.
func NewFetcher(client dataaxle.Client, cfg FetchConfig) Fetcher {
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &providerFetcher{client: client, cfg: cfg}
}

// scopeFilter builds the provider filter for a scope and workflow.
func scopeFilter(scope Scope, workflow Workflow) dataaxle.Filter {
	geo := dataaxle.GeoPolygon(scope.Ring)
	if workflow != WorkflowBusiness && scope.HeadOfHousehold {
		return dataaxle.And(geo, dataaxle.Equals("estimated_head_of_family", true))
	}
	return geo
}

func (f *providerFetcher) FetchRecords(ctx context.Context, scope Scope, workflow Workflow) ([]dataaxle.Record, error) {
	dataset := workflow.Dataset()
	filter := scopeFilter(scope, workflow)

	scan, err := f.client.Scan(ctx, dataset, filter)
	if err != nil {
		return nil, err
	}
	if scan.Count == 0 {
		return nil, nil
	}

	log := zap.L().With(
		zap.String("folder", scope.Folder),
		zap.String("polygon", scope.Polygon),
		zap.String("dataset", string(dataset)),
	)
	log.Debug("scan opened", zap.Int("count", scan.Count))

	var out []dataaxle.Record
	scrollID := scan.ScrollID
	for page := 0; f.cfg.MaxPages < 0 || page < f.cfg.MaxPages; page++ {
		pg, err := f.client.Scroll(ctx, dataset, scrollID)
		if err != nil {
			return nil, err
		}
		if len(pg.Documents) == 0 {
			break
		}
		out = append(out, pg.Documents...)
		if f.cfg.MaxResults > 0 && len(out) >= f.cfg.MaxResults {
			out = out[:f.cfg.MaxResults]
			log.Debug("result cap reached", zap.Int("max_results", f.cfg.MaxResults))
			break
		}
		if pg.ScrollID != "" {
			scrollID = pg.ScrollID
		}
	}
	return out, nil
}

// insightMetric binds one named metric to its provider calculation.
type insightMetric struct {
	name    string
	dataset dataaxle.Dataset
	calc    dataaxle.InsightCalc
	store   func(b *InsightBundle, res *dataaxle.InsightResult)
}

func insightMetrics() []insightMetric {
	return []insightMetric{
		{
			name:    "income",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "estimated_household_income"},
			store: func(b *InsightBundle, res *dataaxle.InsightResult) {
				b.Income = res.Buckets
				b.HouseholdCount = res.Count
			},
		},
		{
			name:    "home_value",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "estimated_home_value"},
			store:   func(b *InsightBundle, res *dataaxle.InsightResult) { b.HomeValue = res.Buckets },
		},
		{
			name:    "wealth",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "estimated_wealth"},
			store:   func(b *InsightBundle, res *dataaxle.InsightResult) { b.Wealth = res.Buckets },
		},
		{
			name:    "ownership",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "home_owner_status"},
			store:   func(b *InsightBundle, res *dataaxle.InsightResult) { b.Ownership = res.Buckets },
		},
		{
			name:    "education",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "education_level"},
			store:   func(b *InsightBundle, res *dataaxle.InsightResult) { b.Education = res.Buckets },
		},
		{
			name:    "language",
			dataset: dataaxle.DatasetPeople,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "primary_language"},
			store:   func(b *InsightBundle, res *dataaxle.InsightResult) { b.Language = res.Buckets },
		},
		{
			name:    "business_categories",
			dataset: dataaxle.DatasetPlaces,
			calc:    dataaxle.InsightCalc{Kind: dataaxle.CalcFrequencies, Field: "primary_sic_description"},
			store: func(b *InsightBundle, res *dataaxle.InsightResult) {
				b.BusinessCategories = res.Buckets
				b.BusinessCount = res.Count
			},
		},
	}
}

// FetchInsights runs each metric calculation independently. A failed
// metric is recorded as missing; the polygon fails only when every
// metric call fails.
func (f *providerFetcher) FetchInsights(ctx context.Context, scope Scope) (*InsightBundle, error) {
	geo := dataaxle.GeoPolygon(scope.Ring)
	peopleFilter := dataaxle.And(geo, dataaxle.Equals("estimated_head_of_family", true))

	bundle := &InsightBundle{}
	var lastErr error
	succeeded := 0
	for _, m := range insightMetrics() {
		filter := geo
		if m.dataset == dataaxle.DatasetPeople {
			filter = peopleFilter
		}

		res, err := f.client.Insights(ctx, m.dataset, filter, m.calc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("insight metric failed",
				zap.String("folder", scope.Folder),
				zap.String("polygon", scope.Polygon),
				zap.String("metric", m.name),
				zap.Error(err),
			)
			bundle.Missing = append(bundle.Missing, m.name)
			lastErr = err
			continue
		}
		m.store(bundle, res)
		succeeded++
	}

	if succeeded == 0 {
		return nil, eris.Wrap(lastErr, "all insight metrics failed")
	}
	return bundle, nil
}
