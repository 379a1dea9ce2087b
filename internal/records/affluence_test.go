package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/areascope/pkg/dataaxle"
)

func fullBundle() *InsightBundle {
	return &InsightBundle{
		HouseholdCount: 100,
		Income: []dataaxle.Bucket{
			{Lower: 50000, Upper: 75000, Count: 40},
			{Lower: 75000, Upper: 100000, Count: 60},
		},
		HomeValue: []dataaxle.Bucket{
			{Lower: 200000, Upper: 300000, Count: 100},
		},
		Wealth: []dataaxle.Bucket{
			{Lower: 100000, Upper: 150000, Count: 100},
		},
		Ownership: []dataaxle.Bucket{
			{Value: "Home Owner", Count: 70},
			{Value: "Renter", Count: 30},
		},
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := DefaultAffluenceConfig()
	b := fullBundle()

	first := Score(b, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(b, cfg))
	}
}

func TestScoreFullBundle(t *testing.T) {
	cfg := DefaultAffluenceConfig()
	score := Score(fullBundle(), cfg)

	// income median bucket 75k-100k -> 87500/125000 = 0.70
	// home value 250000/250000 = 1.00 (capped)
	// wealth 125000/200000 = 0.625
	// ownership 0.70
	// weighted: .70*.30 + 1.00*.30 + .625*.25 + .70*.15 = 0.77125
	assert.InDelta(t, 77.13, score, 0.01)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestScoreMissingMetricRenormalizes(t *testing.T) {
	cfg := DefaultAffluenceConfig()
	b := fullBundle()
	b.Wealth = nil

	// Remaining weights .30/.30/.15 renormalize over .75:
	// (.70*.30 + 1.00*.30 + .70*.15) / .75 = 0.82
	assert.InDelta(t, 82.0, Score(b, cfg), 0.01)
}

func TestScoreEmptyBundle(t *testing.T) {
	assert.Equal(t, 0.0, Score(&InsightBundle{}, DefaultAffluenceConfig()))
}

func TestScoreCapsComponents(t *testing.T) {
	cfg := DefaultAffluenceConfig()
	b := &InsightBundle{
		Income: []dataaxle.Bucket{{Lower: 400000, Upper: 600000, Count: 10}},
	}
	// 500000 midpoint capped to 1.0; only the income weight counts.
	assert.Equal(t, 100.0, Score(b, cfg))
}

func TestMedianMidpoint(t *testing.T) {
	buckets := []dataaxle.Bucket{
		{Lower: 0, Upper: 25000, Count: 10},
		{Lower: 25000, Upper: 50000, Count: 10},
		{Lower: 50000, Upper: 75000, Count: 80},
	}
	mid, ok := medianMidpoint(buckets)
	require.True(t, ok)
	assert.Equal(t, 62500.0, mid)

	// Open-ended top bucket falls back to its lower bound.
	open := []dataaxle.Bucket{{Lower: 250000, Count: 5}}
	mid, ok = medianMidpoint(open)
	require.True(t, ok)
	assert.Equal(t, 250000.0, mid)

	_, ok = medianMidpoint(nil)
	assert.False(t, ok)
}

func TestOwnershipRate(t *testing.T) {
	rate, ok := ownershipRate([]dataaxle.Bucket{
		{Value: "Home Owner", Count: 3},
		{Value: "Renter", Count: 1},
	})
	require.True(t, ok)
	assert.Equal(t, 0.75, rate)

	_, ok = ownershipRate(nil)
	assert.False(t, ok)
}

func TestAffluenceConfigValidate(t *testing.T) {
	require.NoError(t, DefaultAffluenceConfig().Validate())

	bad := DefaultAffluenceConfig()
	bad.IncomeWeight = -1
	assert.Error(t, bad.Validate())

	zero := AffluenceConfig{IncomeCap: 1, HomeValueCap: 1, WealthCap: 1}
	assert.Error(t, zero.Validate())

	noCap := DefaultAffluenceConfig()
	noCap.WealthCap = 0
	assert.Error(t, noCap.Validate())
}
