package correlation

import (
	"github.com/voldesk/options-core/internal/observ"
	"github.com/voldesk/options-core/internal/regime"
)

// RiskLevel is the bounded classification a stress test produces.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
	RiskExtreme  RiskLevel = "extreme"
)

// ScenarioPosition is one hypothetical position for a stress replay.
type ScenarioPosition struct {
	Symbol   string  `json:"symbol"`
	Notional float64 `json:"notional"`
}

// StressResult reports the outcome of replaying a hypothetical portfolio
// through the group weights. EstimatedLoss is the loss of the portfolio the
// admission rules would actually have allowed; UnprotectedLoss is the loss of
// the raw scenario. Violations counts scenario positions the rules reject.
type StressResult struct {
	EstimatedLoss   float64   `json:"estimated_loss"`
	UnprotectedLoss float64   `json:"unprotected_loss"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Violations      int       `json:"violations"`
}

// StressTest replays scenarioPositions through the same crisis weights and
// admission rules at the given volatility level. It is used to validate that
// the admission rules would have prevented known disaster scenarios.
func (c *Controller) StressTest(scenario []ScenarioPosition, vixLevel float64) StressResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	shock := shockFraction(vixLevel)

	// Replay admission over an empty book: per-group dynamic limits plus the
	// equity-like aggregate cap, same as the live gate. The replay regime
	// follows the scenario's volatility level, not live conditions, so a
	// crisis scenario sees the crisis-tightened limits. The equity phase has
	// no hypothetical in the scenario and stays at live conditions.
	scenarioHigh := regime.AtLeastHigh(c.classifier.Classify(vixLevel))
	admittedPerGroup := map[string]int{}
	equityLikeAdmitted := 0

	res := StressResult{}
	concentration := 0.0
	groupsHit := map[string]bool{}

	for _, p := range scenario {
		groupName, mapped := c.symbolToGroup[p.Symbol]
		weight := unmappedCrisisWeight
		if mapped {
			weight = c.groups[groupName].cfg.CrisisWeight
			groupsHit[groupName] = true
		}

		loss := p.Notional * weight * shock
		res.UnprotectedLoss += loss

		admitted := true
		if mapped {
			g := c.groups[groupName]
			if admittedPerGroup[groupName] >= c.limitUnder(g, scenarioHigh) {
				admitted = false
			} else if c.equityLike[groupName] && equityLikeAdmitted >= c.equityLikeCap {
				admitted = false
			}
		}
		if admitted {
			res.EstimatedLoss += loss
			if mapped {
				admittedPerGroup[groupName]++
				if c.equityLike[groupName] {
					equityLikeAdmitted++
				}
			}
		} else {
			res.Violations++
		}
	}

	if n := len(scenario); n > 0 {
		perGroup := map[string]int{}
		for _, p := range scenario {
			if g, ok := c.symbolToGroup[p.Symbol]; ok {
				perGroup[g]++
			}
		}
		for name, count := range perGroup {
			concentration += float64(count) / float64(n) * c.groups[name].cfg.CrisisWeight * 100
		}
	}

	res.RiskLevel = classifyStress(concentration, vixLevel, res.Violations)

	observ.Observe("stress_test_estimated_loss", res.EstimatedLoss, nil)
	observ.IncCounter("stress_tests_total", map[string]string{"risk_level": string(res.RiskLevel)})
	return res
}

// shockFraction maps a volatility level to an order-of-magnitude adverse move
// for a crisis-correlated position.
func shockFraction(vix float64) float64 {
	switch {
	case vix < 20:
		return 0.08
	case vix < 30:
		return 0.15
	case vix < 40:
		return 0.25
	default:
		return 0.40
	}
}

func classifyStress(concentration, vix float64, violations int) RiskLevel {
	switch {
	case concentration >= 70 && vix >= 40:
		return RiskExtreme
	case concentration >= 50 && vix >= 30, violations > 3:
		return RiskHigh
	case concentration >= 30 || vix >= 30:
		return RiskElevated
	default:
		return RiskNormal
	}
}
