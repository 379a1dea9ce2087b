package records

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/pkg/dataaxle"
)

// AffluenceConfig holds the component weights and normalization caps of
// the affluence score.
type AffluenceConfig struct {
	IncomeWeight    float64 `yaml:"income_weight" mapstructure:"income_weight"`
	HomeValueWeight float64 `yaml:"home_value_weight" mapstructure:"home_value_weight"`
	WealthWeight    float64 `yaml:"wealth_weight" mapstructure:"wealth_weight"`
	OwnershipWeight float64 `yaml:"ownership_weight" mapstructure:"ownership_weight"`

	IncomeCap    float64 `yaml:"income_cap" mapstructure:"income_cap"`
	HomeValueCap float64 `yaml:"home_value_cap" mapstructure:"home_value_cap"`
	WealthCap    float64 `yaml:"wealth_cap" mapstructure:"wealth_cap"`
}

// DefaultAffluenceConfig returns the standard weighting: income and
// home value 30% each, wealth 25%, home ownership 15%.
func DefaultAffluenceConfig() AffluenceConfig {
	return AffluenceConfig{
		IncomeWeight:    0.30,
		HomeValueWeight: 0.30,
		WealthWeight:    0.25,
		OwnershipWeight: 0.15,
		IncomeCap:       125000,
		HomeValueCap:    250000,
		WealthCap:       200000,
	}
}

// Validate checks weights and caps are usable.
func (c AffluenceConfig) Validate() error {
	weights := []float64{c.IncomeWeight, c.HomeValueWeight, c.WealthWeight, c.OwnershipWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return eris.New("affluence: weights must be non-negative")
		}
		sum += w
	}
	if sum <= 0 {
		return eris.New("affluence: at least one weight must be positive")
	}
	if c.IncomeCap <= 0 || c.HomeValueCap <= 0 || c.WealthCap <= 0 {
		return eris.New("affluence: normalization caps must be positive")
	}
	return nil
}

// Score computes the affluence score in [0, 100] from the bundle's
// income, home value, wealth, and ownership metrics. Missing metrics
// are excluded and the remaining weights renormalized; no usable metric
// yields 0. Deterministic for a given bundle and config.
func Score(b *InsightBundle, cfg AffluenceConfig) float64 {
	type component struct {
		value  float64
		weight float64
		ok     bool
	}

	income, incomeOK := medianMidpoint(b.Income)
	home, homeOK := medianMidpoint(b.HomeValue)
	wealth, wealthOK := medianMidpoint(b.Wealth)
	ownership, ownershipOK := ownershipRate(b.Ownership)

	components := []component{
		{clamp01(income / cfg.IncomeCap), cfg.IncomeWeight, incomeOK},
		{clamp01(home / cfg.HomeValueCap), cfg.HomeValueWeight, homeOK},
		{clamp01(wealth / cfg.WealthCap), cfg.WealthWeight, wealthOK},
		{ownership, cfg.OwnershipWeight, ownershipOK},
	}

	var weighted, totalWeight float64
	for _, c := range components {
		if !c.ok || c.weight <= 0 {
			continue
		}
		weighted += c.value * c.weight
		totalWeight += c.weight
	}
	if totalWeight == 0 {
		return 0
	}

	score := weighted / totalWeight * 100
	score = math.Round(score*100) / 100
	return math.Min(100, math.Max(0, score))
}

// medianMidpoint returns the midpoint of the bucket containing the
// weighted median record, with buckets ordered by lower bound.
func medianMidpoint(buckets []dataaxle.Bucket) (float64, bool) {
	ordered := make([]dataaxle.Bucket, 0, len(buckets))
	total := 0
	for _, bk := range buckets {
		if bk.Count <= 0 {
			continue
		}
		ordered = append(ordered, bk)
		total += bk.Count
	}
	if total == 0 {
		return 0, false
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Lower < ordered[j].Lower })

	half := float64(total) / 2
	cum := 0
	for _, bk := range ordered {
		cum += bk.Count
		if float64(cum) >= half {
			return bucketMidpoint(bk), true
		}
	}
	return bucketMidpoint(ordered[len(ordered)-1]), true
}

// bucketMidpoint treats open-ended top buckets (no upper bound) as
// their lower bound.
func bucketMidpoint(bk dataaxle.Bucket) float64 {
	if bk.Upper <= bk.Lower {
		return bk.Lower
	}
	return (bk.Lower + bk.Upper) / 2
}

// ownershipRate returns the owner share of the ownership distribution.
func ownershipRate(buckets []dataaxle.Bucket) (float64, bool) {
	owners, total := 0, 0
	for _, bk := range buckets {
		if bk.Count <= 0 {
			continue
		}
		total += bk.Count
		v := strings.ToLower(bk.Value)
		if strings.Contains(v, "owner") && !strings.Contains(v, "non") {
			owners += bk.Count
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(owners) / float64(total), true
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
