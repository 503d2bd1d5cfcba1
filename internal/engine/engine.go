// Package engine wires the regime classifier, phase manager, correlation
// controller, position book, and emergency protocol into one decision core.
// Callers hand it already-resolved snapshots; the engine performs no market
// I/O of its own. Every terminal decision is logged and, when a journal is
// attached, persisted.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/correlation"
	"github.com/voldesk/options-core/internal/emergency"
	"github.com/voldesk/options-core/internal/journal"
	"github.com/voldesk/options-core/internal/lifecycle"
	"github.com/voldesk/options-core/internal/marketdata"
	"github.com/voldesk/options-core/internal/observ"
	"github.com/voldesk/options-core/internal/phase"
	"github.com/voldesk/options-core/internal/regime"
	"github.com/voldesk/options-core/internal/sizing"
)

// ErrHalted is returned by admission paths after a fatal data failure stopped
// the core. Defensive paths (Sweep, lifecycle evaluation) keep working.
var ErrHalted = errors.New("decision core halted")

// Candidate is a proposed new position awaiting admission.
type Candidate struct {
	Symbol   string
	Strategy string
}

// AccountSnapshot is the caller-resolved account state for one evaluation.
type AccountSnapshot struct {
	Equity          float64
	BuyingPowerUsed float64 // fraction of equity already committed, [0,1]
}

// MarketSnapshot is the caller-resolved market state for one evaluation.
type MarketSnapshot struct {
	VIX  marketdata.Reading
	Now  time.Time
	Spot map[string]float64 // underlying last per symbol
}

// Gates, in evaluation order. A denial names the gate that produced it.
const (
	GateData        = "data"
	GateProtocol    = "protocol"
	GatePhase       = "phase"
	GateBuyingPower = "buying_power"
	GateCorrelation = "correlation"
)

// AdmissionDecision is the engine's answer to a candidate.
type AdmissionDecision struct {
	Allowed bool
	Gate    string // the gate that decided, empty when allowed
	Reason  string

	// Correlation context when that gate decided.
	Group   string
	Limit   int
	Current int

	// PositionID is the correlation slot reserved for an allowed candidate.
	// The caller must either RegisterFill or ReleaseAdmission it.
	PositionID string
}

// FillDetails describes an executed entry the caller reports back.
type FillDetails struct {
	Symbol   string
	Strategy string
	Expiry   time.Time
	Strike   float64
	Right    lifecycle.Right
	Quantity int // signed, negative for short
	Credit   float64
	FilledAt time.Time
}

// Engine is the decision core facade. Safe for concurrent use.
type Engine struct {
	cfg        config.Root
	classifier *regime.Classifier
	phases     *phase.Manager
	controller *correlation.Controller
	book       *lifecycle.Book
	evaluator  *lifecycle.Evaluator
	protocol   *emergency.Orchestrator
	journal    *journal.Journal

	mu         sync.Mutex
	halted     bool
	haltReason string
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithJournal attaches a decision journal. Without one, decisions are only
// logged.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// New builds an engine from a validated config.
func New(cfg config.Root, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		classifier: regime.NewClassifier(cfg),
		phases:     phase.NewManager(cfg),
		controller: correlation.NewController(cfg),
		book:       lifecycle.NewBook(),
		evaluator:  lifecycle.NewEvaluator(cfg),
		protocol:   emergency.NewOrchestrator(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Book exposes the position book for mark updates and inspection.
func (e *Engine) Book() *lifecycle.Book { return e.book }

// Correlation exposes the admission controller for snapshots and stress runs.
func (e *Engine) Correlation() *correlation.Controller { return e.controller }

// Halted reports whether a fatal data failure has stopped new admissions.
func (e *Engine) Halted() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted, e.haltReason
}

func (e *Engine) halt(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return
	}
	e.halted = true
	e.haltReason = reason
	observ.Log("core_halted", map[string]any{"reason": reason})
	observ.SetGauge("core_halted", 1, nil)
}

// vix resolves the volatility reading, applying the outage policy: degraded
// readings pass with a log line, unavailable readings are propagated as typed
// errors, and a fatal outage halts new admissions.
func (e *Engine) vix(m MarketSnapshot) (float64, error) {
	v, err := m.VIX.Float()
	if err != nil {
		var ue *marketdata.UnavailableError
		if errors.As(err, &ue) {
			observ.IncCounter("marketdata_outages_total", map[string]string{
				"severity": ue.Severity.String(),
			})
			if ue.Severity == marketdata.SeverityFatal {
				e.halt(ue.Reason)
			}
		}
		return 0, err
	}
	if degraded, reason := m.VIX.IsDegraded(); degraded {
		observ.Log("marketdata_degraded", map[string]any{"instrument": "vix", "reason": reason})
		observ.IncCounter("marketdata_degraded_total", map[string]string{"instrument": "vix"})
	}
	return v, nil
}

// EvaluateAdmission runs a candidate through the gate pipeline:
// data availability, emergency protocol, phase, regime buying-power headroom,
// then correlation admission. An allowed decision has already reserved its
// correlation slot; the caller confirms with RegisterFill or abandons with
// ReleaseAdmission.
func (e *Engine) EvaluateAdmission(c Candidate, acct AccountSnapshot, mkt MarketSnapshot) (AdmissionDecision, error) {
	start := time.Now()
	defer func() { observ.ObserveDuration("admission_eval", time.Since(start), nil) }()

	if halted, why := e.Halted(); halted {
		return AdmissionDecision{}, fmt.Errorf("%w: %s", ErrHalted, why)
	}

	vix, err := e.vix(mkt)
	if err != nil {
		return AdmissionDecision{}, fmt.Errorf("admission %s: %w", c.Symbol, err)
	}

	directive := e.protocol.Evaluate(vix)
	if directive.BlockNewEntries {
		return e.deny(c, acct, vix, GateProtocol,
			fmt.Sprintf("new entries blocked at protocol level %s: %s", directive.Level, directive.Reason)), nil
	}

	ph := e.phases.Observe(acct.Equity)
	prof := e.phases.Profile(ph)
	if ph == 0 {
		return e.deny(c, acct, vix, GatePhase,
			fmt.Sprintf("equity %.2f below minimum for phase 1", acct.Equity)), nil
	}
	if !prof.IsStrategyAllowed(c.Strategy) {
		return e.deny(c, acct, vix, GatePhase,
			fmt.Sprintf("strategy %s not allowed in phase %d", c.Strategy, ph)), nil
	}
	// Count reserved admission slots as well as filled positions, so a burst
	// of admitted-but-unfilled candidates cannot exceed the phase cap.
	open := len(e.book.OpenPositions())
	if reserved := e.controller.TotalActive(); reserved > open {
		open = reserved
	}
	if open >= prof.MaxPositions {
		return e.deny(c, acct, vix, GatePhase,
			fmt.Sprintf("phase %d position limit %d reached (%d open or reserved)", ph, prof.MaxPositions, open)), nil
	}

	r := e.classifier.Classify(vix)
	maxBP := e.classifier.MaxBuyingPower(ph, r) * directive.HeadroomFactor
	if acct.BuyingPowerUsed >= maxBP {
		return e.deny(c, acct, vix, GateBuyingPower,
			fmt.Sprintf("buying power %.0f%% used, %s regime allows %.0f%%",
				acct.BuyingPowerUsed*100, r, maxBP*100)), nil
	}

	e.controller.SetConditions(ph, r)
	posID := journal.NewID()
	cd := e.controller.Admit(c.Symbol, posID)
	if !cd.Allowed {
		out := e.deny(c, acct, vix, GateCorrelation, cd.Reason)
		out.Group, out.Limit, out.Current = cd.Group, cd.Limit, cd.Current
		return out, nil
	}

	dec := AdmissionDecision{
		Allowed:    true,
		Reason:     fmt.Sprintf("admitted in %s regime, phase %d", r, ph),
		Group:      cd.Group,
		Limit:      cd.Limit,
		Current:    cd.Current,
		PositionID: posID,
	}
	e.record(journal.Record{
		ID: posID, Kind: journal.KindAdmission,
		Symbol: c.Symbol, Strategy: c.Strategy,
		Action: "allow", Reason: dec.Reason,
		VIX: vix, Equity: acct.Equity,
	})
	observ.Log("admission_decision", map[string]any{
		"symbol": c.Symbol, "strategy": c.Strategy,
		"allowed": true, "reason": dec.Reason, "position": posID,
	})
	observ.IncCounter("admission_decisions_total", map[string]string{"outcome": "allow"})
	return dec, nil
}

func (e *Engine) deny(c Candidate, acct AccountSnapshot, vix float64, gate, reason string) AdmissionDecision {
	e.record(journal.Record{
		ID: journal.NewID(), Kind: journal.KindAdmission,
		Symbol: c.Symbol, Strategy: c.Strategy,
		Action: "deny", Reason: reason,
		VIX: vix, Equity: acct.Equity,
	})
	observ.Log("admission_decision", map[string]any{
		"symbol": c.Symbol, "strategy": c.Strategy,
		"allowed": false, "gate": gate, "reason": reason,
	})
	observ.IncCounter("admission_decisions_total", map[string]string{"outcome": "deny", "gate": gate})
	return AdmissionDecision{Allowed: false, Gate: gate, Reason: reason}
}

// RegisterFill confirms an admitted candidate filled and enters it into the
// lifecycle book under its reserved position ID.
func (e *Engine) RegisterFill(positionID string, f FillDetails) error {
	err := e.book.Register(lifecycle.Position{
		ID:        positionID,
		Symbol:    f.Symbol,
		Strategy:  f.Strategy,
		EnteredAt: f.FilledAt,
		Expiry:    f.Expiry,
		Strike:    f.Strike,
		Right:     f.Right,
		Quantity:  f.Quantity,
		Credit:    f.Credit,
	})
	if err != nil {
		return fmt.Errorf("register fill: %w", err)
	}
	return nil
}

// ReleaseAdmission abandons a reserved correlation slot for an admitted
// candidate that never filled.
func (e *Engine) ReleaseAdmission(positionID string) {
	e.controller.Release(positionID)
}

// EvaluatePositionLifecycle runs the defensive rule ladder for one tracked
// position and applies the matching state transition.
func (e *Engine) EvaluatePositionLifecycle(positionID string, mkt MarketSnapshot) (lifecycle.Instruction, error) {
	p, ok := e.book.Get(positionID)
	if !ok {
		return lifecycle.Instruction{}, fmt.Errorf("unknown position %s", positionID)
	}
	inst := e.evaluator.Evaluate(p, lifecycle.MarketView{Now: mkt.Now, Spot: mkt.Spot})
	if err := e.applyInstruction(p, inst, mkt); err != nil {
		return inst, err
	}
	return inst, nil
}

// Sweep evaluates every open-eligible position. Under an emergency directive
// same-day expiries are force-closed regardless of their rule-ladder answer.
// Sweeps run even while the core is halted for new admissions.
func (e *Engine) Sweep(mkt MarketSnapshot) ([]lifecycle.Instruction, error) {
	start := time.Now()
	defer func() { observ.ObserveDuration("sweep", time.Since(start), nil) }()

	var directive emergency.Directive
	if v, err := e.vix(mkt); err == nil {
		directive = e.protocol.Evaluate(v)
	} else {
		// Missing volatility does not stop defense; positions are judged on
		// their own DTE, P&L, and moneyness.
		observ.Log("sweep_without_vix", map[string]any{"error": err.Error()})
	}

	view := lifecycle.MarketView{Now: mkt.Now, Spot: mkt.Spot}
	var out []lifecycle.Instruction
	for _, p := range e.book.OpenPositions() {
		inst := e.evaluator.Evaluate(p, view)
		if directive.CloseSameDayExpiries && p.ExpiresSameDay(mkt.Now) && inst.Action != lifecycle.ActionEmergencyClose {
			inst = lifecycle.Instruction{
				PositionID: p.ID,
				Action:     lifecycle.ActionEmergencyClose,
				Reason:     fmt.Sprintf("same-day expiry under %s protocol", directive.Level),
			}
		}
		if err := e.applyInstruction(p, inst, mkt); err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	observ.SetGauge("sweep_positions", float64(len(out)), nil)
	return out, nil
}

// applyInstruction journals the verdict and moves the position along its
// lifecycle edge. Close actions are only transitions here; the book entry is
// removed when the caller confirms the closing fill.
func (e *Engine) applyInstruction(p lifecycle.Position, inst lifecycle.Instruction, mkt MarketSnapshot) error {
	vix, _ := mkt.VIX.Float()
	e.record(journal.Record{
		ID: journal.NewID(), Kind: journal.KindLifecycle,
		Symbol: p.Symbol, Strategy: p.Strategy,
		Action: string(inst.Action), Reason: inst.Reason,
		VIX: vix,
	})
	switch inst.Action {
	case lifecycle.ActionDefend:
		if p.State == lifecycle.StateOpen {
			return e.book.Transition(p.ID, lifecycle.StateChallenged, inst.Reason)
		}
	case lifecycle.ActionClose, lifecycle.ActionEmergencyClose:
		if p.State == lifecycle.StateDefended {
			return e.book.Transition(p.ID, lifecycle.StateClosed, inst.Reason)
		}
		if p.State == lifecycle.StateOpen {
			if err := e.book.Transition(p.ID, lifecycle.StateChallenged, inst.Reason); err != nil {
				return err
			}
		}
		return e.book.Transition(p.ID, lifecycle.StateClosed, inst.Reason)
	}
	return nil
}

// ConfirmDefense records that the defensive adjustment for a challenged
// position completed (e.g. the roll order is working or hedged).
func (e *Engine) ConfirmDefense(positionID, reason string) error {
	return e.book.Transition(positionID, lifecycle.StateDefended, reason)
}

// ConfirmRoll records a completed roll fill: the defended position returns to
// open under its new expiry and credit.
func (e *Engine) ConfirmRoll(positionID string, newExpiry time.Time, newCredit float64) error {
	return e.book.Roll(positionID, newExpiry, newCredit)
}

// ConfirmClosed records a completed closing fill and frees the position's
// correlation slot.
func (e *Engine) ConfirmClosed(positionID string) error {
	if err := e.book.Unregister(positionID); err != nil {
		return err
	}
	e.controller.Release(positionID)
	return nil
}

// PlanRoll delegates to the defensive evaluator for a tracked position.
func (e *Engine) PlanRoll(positionID string, candidates []time.Time, now time.Time) (lifecycle.RollPlan, error) {
	p, ok := e.book.Get(positionID)
	if !ok {
		return lifecycle.RollPlan{}, fmt.Errorf("unknown position %s", positionID)
	}
	return e.evaluator.PlanRoll(p, candidates, now), nil
}

// CurrentProtocol resolves the emergency directive for the given snapshot and
// journals level changes.
func (e *Engine) CurrentProtocol(mkt MarketSnapshot) (emergency.Directive, error) {
	v, err := e.vix(mkt)
	if err != nil {
		return emergency.Directive{}, err
	}
	d := e.protocol.Evaluate(v)
	e.record(journal.Record{
		ID: journal.NewID(), Kind: journal.KindProtocol,
		Action: d.Level.String(), Reason: d.Reason, VIX: v,
	})
	return d, nil
}

// SizePosition returns the capped Kelly risk fraction for an edge estimate.
// The effective cap is the tighter of the sizing policy cap and the current
// phase's per-trade risk limit.
func (e *Engine) SizePosition(winRate, avgWin, avgLoss float64) (sizing.Recommendation, error) {
	policy := e.cfg.Sizing
	if prof := e.phases.Profile(e.phases.Current()); prof.MaxRiskPerTrade > 0 && prof.MaxRiskPerTrade < policy.PerTradeRiskCap {
		policy.PerTradeRiskCap = prof.MaxRiskPerTrade
	}
	return sizing.Kelly(winRate, avgWin, avgLoss, policy)
}

func (e *Engine) record(r journal.Record) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(r); err != nil {
		observ.Log("journal_append_failed", map[string]any{"error": err.Error()})
		observ.IncCounter("journal_errors_total", nil)
	}
}
