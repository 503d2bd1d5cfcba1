// Package emergency maps the volatility regime to a portfolio-wide protocol
// directive on an ordered escalation ladder. Each level adds directives on
// top of the previous one; the execution layer acts on the directive, this
// package only decides it.
package emergency

import (
	"fmt"
	"sync"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/observ"
)

// Level is a rung on the escalation ladder.
type Level int

const (
	LevelNormal Level = iota
	LevelPreventive
	LevelElevated
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelPreventive:
		return "preventive"
	case LevelElevated:
		return "elevated"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Directive is the cumulative instruction set for a protocol level.
type Directive struct {
	Level Level `json:"level"`

	// Preventive and above: new-entry buying-power headroom is scaled down.
	HeadroomFactor float64 `json:"headroom_factor"`

	// Elevated and above: no new entries at all, shrink existing exposure.
	BlockNewEntries   bool    `json:"block_new_entries"`
	ExposureShrinkPct float64 `json:"exposure_shrink_pct"`

	// Emergency only: force-close everything expiring today, wake someone up.
	CloseSameDayExpiries bool `json:"close_same_day_expiries"`
	CriticalAlert        bool `json:"critical_alert"`

	Reason string `json:"reason"`
}

// Orchestrator evaluates the ladder and logs level transitions. The
// thresholds are validated distinct and strictly ascending at config load, so
// two rungs can never share a boundary.
type Orchestrator struct {
	mu      sync.Mutex
	cfg     config.Emergency
	last    Level
	hasLast bool
}

func NewOrchestrator(cfg config.Root) *Orchestrator {
	return &Orchestrator{cfg: cfg.Emergency}
}

// LevelFor buckets a volatility index value onto the ladder. Boundaries
// belong to the higher rung.
func (o *Orchestrator) LevelFor(vix float64) Level {
	switch {
	case vix >= o.cfg.EmergencyVIX:
		return LevelEmergency
	case vix >= o.cfg.ElevatedVIX:
		return LevelElevated
	case vix >= o.cfg.PreventiveVIX:
		return LevelPreventive
	default:
		return LevelNormal
	}
}

// Evaluate returns the directive for the current volatility level and logs
// escalations and de-escalations as they happen.
func (o *Orchestrator) Evaluate(vix float64) Directive {
	level := o.LevelFor(vix)

	o.mu.Lock()
	prev := o.last
	first := !o.hasLast
	o.last = level
	o.hasLast = true
	o.mu.Unlock()

	changed := first && level != LevelNormal || !first && prev != level
	if changed {
		event := "protocol_escalation"
		if !first && level < prev {
			event = "protocol_deescalation"
		}
		observ.Log(event, map[string]any{
			"from": prev.String(),
			"to":   level.String(),
			"vix":  vix,
		})
		observ.IncCounter("protocol_transitions_total", map[string]string{
			"from": prev.String(), "to": level.String(),
		})
	}
	observ.SetGauge("protocol_level", float64(level), nil)

	return o.directiveFor(level, vix)
}

func (o *Orchestrator) directiveFor(level Level, vix float64) Directive {
	d := Directive{Level: level, HeadroomFactor: 1.0}
	switch level {
	case LevelEmergency:
		d.CloseSameDayExpiries = true
		d.CriticalAlert = true
		fallthrough
	case LevelElevated:
		d.BlockNewEntries = true
		d.ExposureShrinkPct = o.cfg.ExposureShrinkPct
		fallthrough
	case LevelPreventive:
		d.HeadroomFactor = o.cfg.HeadroomFactor
	}
	d.Reason = fmt.Sprintf("volatility index %.1f => %s protocol", vix, level)
	return d
}
