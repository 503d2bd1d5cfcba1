package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/voldesk/options-core/internal/config"
)

var sweepNow = time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

func testPosition(dte int, credit, mark float64) Position {
	return Position{
		ID:       "p-1",
		Symbol:   "SPY",
		Strategy: "put_credit_spread",
		Expiry:   sweepNow.AddDate(0, 0, dte),
		Strike:   600,
		Right:    RightPut,
		Quantity: -1,
		Credit:   credit,
		Mark:     mark,
		State:    StateOpen,
	}
}

func TestEvaluateRuleLadder(t *testing.T) {
	e := NewEvaluator(config.Default())

	testCases := []struct {
		name string
		pos  Position
		spot map[string]float64
		want Action
	}{
		{
			"healthy position far from expiry holds",
			testPosition(40, 2.00, 1.80),
			map[string]float64{"SPY": 620},
			ActionHold,
		},
		{
			"profit target closes",
			testPosition(40, 2.00, 0.90), // 55% of max profit, target 50%
			map[string]float64{"SPY": 650},
			ActionClose,
		},
		{
			"stop loss closes",
			testPosition(40, 2.00, 6.50), // 2.25x credit lost, limit 2.0x
			map[string]float64{"SPY": 590},
			ActionClose,
		},
		{
			"21 DTE defends even at a profit",
			testPosition(21, 2.00, 0.80), // 60% of max profit, past target
			map[string]float64{"SPY": 650},
			ActionDefend,
		},
		{
			"21 DTE defends even at a loss",
			testPosition(21, 2.00, 5.00),
			map[string]float64{"SPY": 610},
			ActionDefend,
		},
		{
			"18 DTE still defends",
			testPosition(18, 2.00, 1.90),
			map[string]float64{"SPY": 620},
			ActionDefend,
		},
		{
			"short put deep ITM at 1 DTE is assignment risk",
			testPosition(1, 2.00, 9.00),
			map[string]float64{"SPY": 570}, // 5% ITM, buffer 2%
			ActionEmergencyClose,
		},
		{
			"short put OTM at 1 DTE falls through to defend",
			testPosition(1, 2.00, 0.30),
			map[string]float64{"SPY": 620},
			ActionDefend,
		},
		{
			"short put barely ITM within buffer defends",
			testPosition(1, 2.00, 2.50),
			map[string]float64{"SPY": 594}, // 1% ITM, under the 2% buffer
			ActionDefend,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := e.Evaluate(tc.pos, MarketView{Now: sweepNow, Spot: tc.spot})
			if inst.Action != tc.want {
				t.Errorf("Action = %s (%s), want %s", inst.Action, inst.Reason, tc.want)
			}
			if inst.Reason == "" {
				t.Error("instruction carries no reason")
			}
		})
	}
}

func TestEvaluateShortCallAssignmentRisk(t *testing.T) {
	e := NewEvaluator(config.Default())

	p := testPosition(1, 2.00, 8.00)
	p.Right = RightCall
	p.Strike = 600

	inst := e.Evaluate(p, MarketView{Now: sweepNow, Spot: map[string]float64{"SPY": 612}}) // 2% ITM, buffer 1%
	if inst.Action != ActionEmergencyClose {
		t.Errorf("Action = %s, want EMERGENCY_CLOSE for an ITM short call at expiry", inst.Action)
	}
}

func TestEvaluateLongPositionSkipsAssignmentRule(t *testing.T) {
	e := NewEvaluator(config.Default())

	p := testPosition(1, 2.00, 9.00)
	p.Quantity = 1 // long: assignment is a right, not a risk

	inst := e.Evaluate(p, MarketView{Now: sweepNow, Spot: map[string]float64{"SPY": 570}})
	if inst.Action != ActionDefend {
		t.Errorf("Action = %s, want DEFEND via the time rule", inst.Action)
	}
}

func TestEvaluateMissingSpotIsNotAssignment(t *testing.T) {
	e := NewEvaluator(config.Default())

	inst := e.Evaluate(testPosition(1, 2.00, 9.00), MarketView{Now: sweepNow})
	if inst.Action == ActionEmergencyClose {
		t.Error("missing spot data must not trigger an emergency liquidation")
	}
}

func TestEvaluateUnknownStrategyUsesTimeRulesOnly(t *testing.T) {
	e := NewEvaluator(config.Default())

	p := testPosition(40, 2.00, 0.10) // would clear any profit target
	p.Strategy = "calendarized_butterfly"

	inst := e.Evaluate(p, MarketView{Now: sweepNow, Spot: map[string]float64{"SPY": 620}})
	if inst.Action != ActionHold {
		t.Errorf("Action = %s, want HOLD when no rule table entry exists", inst.Action)
	}

	// The absolute time rule still applies without a rule table entry.
	p.Expiry = sweepNow.AddDate(0, 0, 15)
	inst = e.Evaluate(p, MarketView{Now: sweepNow, Spot: map[string]float64{"SPY": 620}})
	if inst.Action != ActionDefend {
		t.Errorf("Action = %s, want DEFEND at 15 DTE", inst.Action)
	}
}

func TestEvaluateClosedPositionHolds(t *testing.T) {
	e := NewEvaluator(config.Default())

	p := testPosition(40, 2.00, 1.00)
	p.State = StateClosed
	inst := e.Evaluate(p, MarketView{Now: sweepNow})
	if inst.Action != ActionHold {
		t.Errorf("Action = %s for a closed position, want HOLD", inst.Action)
	}
}

func TestPlanRollPrefersLongestExpiryInWindow(t *testing.T) {
	e := NewEvaluator(config.Default())
	p := testPosition(20, 2.00, 2.50)

	candidates := []time.Time{
		sweepNow.AddDate(0, 0, 25), // under the window
		sweepNow.AddDate(0, 0, 32),
		sweepNow.AddDate(0, 0, 44),
		sweepNow.AddDate(0, 0, 60), // over the window
	}
	plan := e.PlanRoll(p, candidates, sweepNow)
	if plan.Fallback {
		t.Fatalf("unexpected fallback: %s", plan.Reason)
	}
	if !plan.NewExpiry.Equal(sweepNow.AddDate(0, 0, 44)) {
		t.Errorf("NewExpiry = %v, want the 44 DTE candidate", plan.NewExpiry)
	}
	if plan.Strike != p.Strike || plan.Right != p.Right {
		t.Errorf("roll changed contract terms: strike %v right %s", plan.Strike, plan.Right)
	}
}

func TestPlanRollFallsBackToClose(t *testing.T) {
	e := NewEvaluator(config.Default())
	p := testPosition(20, 2.00, 2.50)

	candidates := []time.Time{
		sweepNow.AddDate(0, 0, 7),
		sweepNow.AddDate(0, 0, 90),
	}
	plan := e.PlanRoll(p, candidates, sweepNow)
	if !plan.Fallback {
		t.Fatal("no candidate in the roll window must degrade to a close")
	}
	if !strings.Contains(plan.Reason, "naked") {
		t.Errorf("fallback reason %q does not state the no-naked-leg constraint", plan.Reason)
	}
}

func TestPlanRollEmptyCandidates(t *testing.T) {
	e := NewEvaluator(config.Default())
	plan := e.PlanRoll(testPosition(20, 2.00, 2.50), nil, sweepNow)
	if !plan.Fallback {
		t.Error("empty candidate list must degrade to a close")
	}
}
