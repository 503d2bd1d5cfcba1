// Package phase maps portfolio equity to a discrete account phase. The phase
// gates which strategies, how many concurrent positions, and how much
// per-trade risk are permitted. Phase is a pure step function of equity: the
// same equity always yields the same phase, with no hysteresis.
package phase

import (
	"sort"
	"sync"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/observ"
)

// Profile is everything a phase permits.
type Profile struct {
	Phase           int
	Strategies      []string // ["*"] means all
	MaxPositions    int
	MaxRiskPerTrade float64
	DefaultUnitSize int
	Description     string
}

// Manager resolves phases and logs transitions. The cached phase exists only
// for transition logging; consumers must re-query, never rely on edge events.
type Manager struct {
	mu        sync.Mutex
	tiers     []config.PhaseTier // sorted ascending by MinEquity
	lastPhase int
	hasLast   bool
}

func NewManager(cfg config.Root) *Manager {
	tiers := append([]config.PhaseTier(nil), cfg.Phases...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinEquity < tiers[j].MinEquity })
	return &Manager{tiers: tiers}
}

// ForEquity returns the phase for an equity value: the highest tier whose
// minimum equity the account clears, or 0 below the first tier's minimum.
func (m *Manager) ForEquity(equity float64) int {
	p := 0
	for _, t := range m.tiers {
		if equity >= t.MinEquity {
			p = t.Phase
		}
	}
	return p
}

// Observe recomputes the phase from equity and logs a transition event when it
// differs from the previously cached phase. Returns the current phase.
func (m *Manager) Observe(equity float64) int {
	p := m.ForEquity(equity)

	m.mu.Lock()
	changed := !m.hasLast || m.lastPhase != p
	prev := m.lastPhase
	m.lastPhase = p
	m.hasLast = true
	m.mu.Unlock()

	if changed {
		observ.Log("phase_transition", map[string]any{
			"previous": prev,
			"current":  p,
			"equity":   equity,
		})
		observ.IncCounter("phase_transitions_total", map[string]string{
			"to": profileName(p),
		})
	}
	observ.SetGauge("account_phase", float64(p), nil)
	return p
}

// Current returns the most recently observed phase (0 before any
// observation).
func (m *Manager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPhase
}

// Profile returns the permissions for a phase. Phase 0 (below minimum) allows
// nothing.
func (m *Manager) Profile(phase int) Profile {
	for _, t := range m.tiers {
		if t.Phase == phase {
			return Profile{
				Phase:           t.Phase,
				Strategies:      t.Strategies,
				MaxPositions:    t.MaxPositions,
				MaxRiskPerTrade: t.MaxRiskPerTrade,
				DefaultUnitSize: t.DefaultUnitSize,
				Description:     t.Description,
			}
		}
	}
	return Profile{Phase: 0, Description: "below minimum equity: no trading"}
}

// IsStrategyAllowed reports whether a phase's allow-list contains the strategy
// or is the wildcard.
func (p Profile) IsStrategyAllowed(strategy string) bool {
	for _, s := range p.Strategies {
		if s == "*" || s == strategy {
			return true
		}
	}
	return false
}

// CalculatePositionSize returns 0 when the strategy is disallowed in this
// phase, otherwise the minimum of the phase's default unit size and the
// risk-capped size derived from riskAmount / maxRiskPerTrade.
func (p Profile) CalculatePositionSize(strategy string, riskAmount float64) int {
	if !p.IsStrategyAllowed(strategy) {
		return 0
	}
	if p.MaxRiskPerTrade <= 0 || riskAmount <= 0 {
		return 0
	}
	capped := int(riskAmount / p.MaxRiskPerTrade)
	if capped < p.DefaultUnitSize {
		return capped
	}
	return p.DefaultUnitSize
}

func profileName(phase int) string {
	switch phase {
	case 0:
		return "below_minimum"
	case 1:
		return "preservation"
	case 2:
		return "growth"
	case 3:
		return "expansion"
	case 4:
		return "full_book"
	default:
		return "unknown"
	}
}
