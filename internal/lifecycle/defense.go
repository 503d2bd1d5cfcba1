package lifecycle

import (
	"fmt"
	"time"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/observ"
)

// Instruction is the defensive verdict for one position on one tick, with the
// human-readable justification the execution layer logs and acts on.
type Instruction struct {
	PositionID string
	Action     Action
	Reason     string
}

// MarketView is the injected, already-resolved market snapshot a sweep runs
// against. The core performs no I/O of its own.
type MarketView struct {
	Now  time.Time
	Spot map[string]float64 // underlying last per symbol
}

// Evaluator applies the defensive rule ladder. Thresholds come from the
// immutable policy table; per-strategy targets from the strategy rule table.
type Evaluator struct {
	defense config.Defense
	rules   map[string]config.StrategyRule
}

func NewEvaluator(cfg config.Root) *Evaluator {
	return &Evaluator{defense: cfg.Defense, rules: cfg.Strategies}
}

// Evaluate runs the rule ladder for one position:
//
//  1. expiry-imminent assignment risk (short option ITM beyond buffer within
//     one day of expiry): immediate liquidation, checked ahead of the defend
//     path because a roll can no longer complete in time,
//  2. the absolute 21-DTE rule: defend regardless of P&L, re-emitted on every
//     tick while the position remains open-eligible at or below the threshold,
//  3. profit target,
//  4. stop loss as a multiple of credit received,
//  5. otherwise hold.
func (e *Evaluator) Evaluate(p Position, m MarketView) Instruction {
	if !p.State.openEligible() {
		return Instruction{PositionID: p.ID, Action: ActionHold,
			Reason: fmt.Sprintf("position is %s, nothing to manage", p.State)}
	}

	dte := p.DTE(m.Now)

	if p.Quantity < 0 && dte <= e.defense.AssignmentDTE {
		if itm, pct := e.itmBeyondBuffer(p, m); itm {
			return e.emit(p, ActionEmergencyClose,
				fmt.Sprintf("short %s %.1f%% ITM with %d DTE: assignment risk, liquidate immediately",
					p.Right, pct*100, dte))
		}
	}

	// Absolute rule, no exceptions: at or below the management threshold the
	// position is defended no matter where P&L sits.
	if dte <= e.defense.DefendDTE {
		return e.emit(p, ActionDefend,
			fmt.Sprintf("%d DTE <= %d DTE management threshold (absolute rule)", dte, e.defense.DefendDTE))
	}

	rule, hasRule := e.rules[p.Strategy]
	if !hasRule {
		observ.IncCounter("lifecycle_missing_strategy_rule_total", map[string]string{"strategy": p.Strategy})
		return e.emit(p, ActionHold,
			fmt.Sprintf("no rule table entry for strategy %s; time-based rules only", p.Strategy))
	}

	ratio := p.ProfitRatio()
	if ratio >= rule.ProfitTarget {
		return e.emit(p, ActionClose,
			fmt.Sprintf("profit target reached: %.0f%% of max profit >= %.0f%% target",
				ratio*100, rule.ProfitTarget*100))
	}

	if loss := -ratio; loss >= rule.StopLossMultiple {
		return e.emit(p, ActionClose,
			fmt.Sprintf("stop loss: %.1fx credit lost >= %.1fx limit", loss, rule.StopLossMultiple))
	}

	return Instruction{PositionID: p.ID, Action: ActionHold, Reason: "within all thresholds"}
}

func (e *Evaluator) emit(p Position, a Action, reason string) Instruction {
	observ.IncCounter("defensive_actions_total", map[string]string{
		"action": string(a), "strategy": p.Strategy,
	})
	return Instruction{PositionID: p.ID, Action: a, Reason: reason}
}

// itmBeyondBuffer reports whether the short leg is in the money beyond the
// per-right buffer, and by how much. Missing spot data counts as not ITM;
// the data-quality gate upstream is responsible for blocking decisions on
// stale books.
func (e *Evaluator) itmBeyondBuffer(p Position, m MarketView) (bool, float64) {
	spot, ok := m.Spot[p.Symbol]
	if !ok || spot <= 0 || p.Strike <= 0 {
		return false, 0
	}
	switch p.Right {
	case RightPut:
		depth := (p.Strike - spot) / p.Strike
		return depth > e.defense.PutITMBufferPct, depth
	case RightCall:
		depth := (spot - p.Strike) / p.Strike
		return depth > e.defense.CallITMBufferPct, depth
	default:
		return false, 0
	}
}

// RollPlan describes the defended outcome: close the current contract and
// open a replacement at the same strike and right.
type RollPlan struct {
	PositionID string
	Strike     float64
	Right      Right
	NewExpiry  time.Time
	// Fallback is set when no replacement expiry exists in the roll window;
	// the position must then be closed outright. A roll never leaves a naked
	// unhedged leg behind.
	Fallback bool
	Reason   string
}

// PlanRoll picks a replacement expiry in the configured roll window from the
// injected candidate list (closest to the top of the window wins, matching
// the preference for maximum duration). With no candidate in the window, the
// plan degrades to a straight close and the degraded outcome is logged.
func (e *Evaluator) PlanRoll(p Position, candidates []time.Time, now time.Time) RollPlan {
	var best time.Time
	bestDTE := -1
	for _, exp := range candidates {
		dte := int(exp.Sub(now).Hours() / 24)
		if dte < e.defense.RollMinDTE || dte > e.defense.RollMaxDTE {
			continue
		}
		if dte > bestDTE {
			bestDTE = dte
			best = exp
		}
	}

	if bestDTE < 0 {
		observ.Log("roll_degraded", map[string]any{
			"position": p.ID,
			"symbol":   p.Symbol,
			"reason":   "no replacement expiry in roll window, closing instead",
		})
		observ.IncCounter("roll_fallback_closes_total", nil)
		return RollPlan{
			PositionID: p.ID,
			Fallback:   true,
			Reason: fmt.Sprintf("no expiry available %d-%d DTE; close outright rather than leave a naked leg",
				e.defense.RollMinDTE, e.defense.RollMaxDTE),
		}
	}

	return RollPlan{
		PositionID: p.ID,
		Strike:     p.Strike,
		Right:      p.Right,
		NewExpiry:  best,
		Reason:     fmt.Sprintf("roll to %s (%d DTE) at same strike %.2f", best.Format("2006-01-02"), bestDTE, p.Strike),
	}
}
