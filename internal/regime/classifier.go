// Package regime maps a volatility-index reading to a discrete market regime
// and a maximum buying-power fraction for the current account phase. Pure
// lookups; data availability is the caller's problem.
package regime

import (
	"github.com/voldesk/options-core/internal/config"
)

// Regime is a discrete bucket of market volatility used to scale risk budgets.
type Regime string

const (
	VeryLow  Regime = "very_low"
	Low      Regime = "low"
	Normal   Regime = "normal"
	High     Regime = "high"
	VeryHigh Regime = "very_high"
)

// Classifier holds the immutable band boundaries and buying-power table.
type Classifier struct {
	bands config.RegimeThresholds
	bp    map[int]map[string]float64
}

func NewClassifier(cfg config.Root) *Classifier {
	return &Classifier{bands: cfg.Regime, bp: cfg.BuyingPower}
}

// Classify buckets a volatility index value. Bands are half-open [low, high):
// a reading exactly at a boundary always belongs to the higher band, so
// repeated calls with the same value can never flip-flop.
func (c *Classifier) Classify(vix float64) Regime {
	switch {
	case vix < c.bands.VeryLowBelow:
		return VeryLow
	case vix < c.bands.LowBelow:
		return Low
	case vix < c.bands.NormalBelow:
		return Normal
	case vix < c.bands.HighBelow:
		return High
	default:
		return VeryHigh
	}
}

// Coarse collapses the five-band scale to the {normal, high} variant used by
// simplified policies. Everything below the high boundary is normal.
func (c *Classifier) Coarse(vix float64) Regime {
	if vix < c.bands.NormalBelow {
		return Normal
	}
	return High
}

// AtLeastHigh reports whether the regime sits at High or above; correlation
// limits shrink one slot per group in that territory.
func AtLeastHigh(r Regime) bool {
	return r == High || r == VeryHigh
}

// MaxBuyingPower returns the maximum buying-power fraction for a
// (phase, regime) pair from the policy table. Unknown pairs return 0: no
// table entry means no budget, never a guessed default.
func (c *Classifier) MaxBuyingPower(phase int, r Regime) float64 {
	byRegime, ok := c.bp[phase]
	if !ok {
		return 0
	}
	return byRegime[string(r)]
}
