// Package correlation owns the authoritative mapping of symbols to
// correlation groups and the per-group/global position counters. Every
// candidate position passes through this single gate before entry. The
// counters are the only mutable shared state in the decision core, so the
// check-and-register path is one critical section per account.
package correlation

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/observ"
	"github.com/voldesk/options-core/internal/regime"
)

// Decision is the admission outcome for one candidate, with the group/limit
// pair that decided it. Denial is a normal outcome, never an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Group   string `json:"group,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Current int    `json:"current,omitempty"`
}

type group struct {
	cfg    config.Group
	active map[string]string // position ID -> symbol
}

// Controller tracks active positions per correlation group and applies the
// per-group caps plus the combined equity-like aggregate cap.
type Controller struct {
	mu            sync.RWMutex
	groups        map[string]*group
	symbolToGroup map[string]string
	equityLike    map[string]bool
	equityLikeCap int
	classifier    *regime.Classifier

	// position ID -> group name ("" for unmapped symbols)
	positions map[string]string

	// conditions feeding the dynamic limits
	phase      int
	regimeHigh bool

	// unmapped-symbol policy gap accounting; warnings are rate limited so a
	// hot symbol cannot flood the log
	policyGaps map[string]int
	gapLimiter *rate.Limiter
}

func NewController(cfg config.Root) *Controller {
	c := &Controller{
		groups:        map[string]*group{},
		symbolToGroup: map[string]string{},
		equityLike:    map[string]bool{},
		equityLikeCap: cfg.Correlation.EquityLikeCap,
		classifier:    regime.NewClassifier(cfg),
		positions:     map[string]string{},
		policyGaps:    map[string]int{},
		gapLimiter:    rate.NewLimiter(rate.Every(30*time.Second), 3),
	}
	for _, g := range cfg.Correlation.Groups {
		c.groups[g.Name] = &group{cfg: g, active: map[string]string{}}
		for _, sym := range g.Symbols {
			c.symbolToGroup[sym] = g.Name
		}
	}
	for _, name := range cfg.Correlation.EquityLikeGroups {
		c.equityLike[name] = true
	}
	return c
}

// SetConditions updates the equity tier and regime feeding the dynamic
// limits. Limits shrink by one slot per group when the regime is High or
// above, floored at one.
func (c *Controller) SetConditions(phase int, r regime.Regime) {
	c.mu.Lock()
	c.phase = phase
	c.regimeHigh = regime.AtLeastHigh(r)
	c.mu.Unlock()
}

// limitFor computes the dynamic limit for a group under current conditions.
// Caller holds at least a read lock.
func (c *Controller) limitFor(g *group) int {
	return c.limitUnder(g, c.regimeHigh)
}

// limitUnder computes the dynamic limit for a group under an explicit regime,
// used by stress replays that run at a hypothetical volatility level.
func (c *Controller) limitUnder(g *group, regimeHigh bool) int {
	limit := g.cfg.BaseLimit
	if c.phase > 2 {
		limit += c.phase - 2
	}
	if regimeHigh {
		limit--
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// equityLikeCount sums active positions across the designated equity-like
// groups. Caller holds at least a read lock.
func (c *Controller) equityLikeCount() int {
	n := 0
	for name := range c.equityLike {
		if g, ok := c.groups[name]; ok {
			n += len(g.active)
		}
	}
	return n
}

// evaluate runs both gates for a symbol. Caller holds at least a read lock.
func (c *Controller) evaluate(symbol string) Decision {
	groupName, mapped := c.symbolToGroup[symbol]
	if !mapped {
		return Decision{
			Allowed: true,
			Reason:  fmt.Sprintf("symbol %s not mapped to any correlation group (policy gap, admitted un-gated)", symbol),
		}
	}

	g := c.groups[groupName]
	limit := c.limitFor(g)
	current := len(g.active)
	if current >= limit {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("group %s at limit: %d/%d active", groupName, current, limit),
			Group:   groupName,
			Limit:   limit,
			Current: current,
		}
	}

	// Combined equity-like rule: the broad index futures and ETF groups share
	// one aggregate cap on top of their individual caps. This gate exists to
	// prevent the concentration failure mode behind a historical loss event.
	if c.equityLike[groupName] {
		agg := c.equityLikeCount()
		if agg >= c.equityLikeCap {
			return Decision{
				Allowed: false,
				Reason: fmt.Sprintf("equity-like aggregate cap reached: %d/%d across %s",
					agg, c.equityLikeCap, equityLikeLabel),
				Group:   groupName,
				Limit:   c.equityLikeCap,
				Current: agg,
			}
		}
	}

	return Decision{
		Allowed: true,
		Reason:  fmt.Sprintf("admitted to group %s (%d/%d)", groupName, current+1, limit),
		Group:   groupName,
		Limit:   limit,
		Current: current,
	}
}

const equityLikeLabel = "equity_index_futures+equity_index_etf"

// CanAdmit answers the admission question without reserving a slot. Use Admit
// for the check-and-register path.
func (c *Controller) CanAdmit(symbol string) Decision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evaluate(symbol)
}

// Admit checks and registers in a single critical section, so two concurrent
// candidates can never both land in an already-full group. Denials register
// nothing.
func (c *Controller) Admit(symbol, positionID string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.positions[positionID]; dup {
		return Decision{Allowed: false, Reason: fmt.Sprintf("position %s already registered", positionID)}
	}

	d := c.evaluate(symbol)
	if !d.Allowed {
		observ.IncCounter("admission_denials_total", map[string]string{"group": d.Group})
		return d
	}

	if d.Group == "" {
		c.positions[positionID] = ""
		c.policyGaps[symbol]++
		observ.IncCounter("policy_gap_admissions_total", map[string]string{"symbol": symbol})
		if c.gapLimiter.Allow() {
			observ.Log("policy_gap", map[string]any{
				"symbol": symbol,
				"reason": "symbol not covered by any correlation group",
			})
		}
		return d
	}

	c.groups[d.Group].active[positionID] = symbol
	c.positions[positionID] = d.Group
	observ.SetGauge("group_active_positions", float64(len(c.groups[d.Group].active)),
		map[string]string{"group": d.Group})
	return d
}

// Release removes a position from its group counter (fill never happened, or
// the position closed). Unknown IDs are a no-op.
func (c *Controller) Release(positionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	groupName, ok := c.positions[positionID]
	if !ok {
		return
	}
	delete(c.positions, positionID)
	if g, ok := c.groups[groupName]; ok {
		delete(g.active, positionID)
		observ.SetGauge("group_active_positions", float64(len(g.active)),
			map[string]string{"group": groupName})
	}
}

// TotalActive returns the number of positions the controller knows about.
// Invariant: this always equals the sum of the per-group counts plus the
// un-gated policy-gap positions.
func (c *Controller) TotalActive() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.positions)
}

// ActiveCounts returns a copy of the per-group active counts.
func (c *Controller) ActiveCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.groups))
	for name, g := range c.groups {
		out[name] = len(g.active)
	}
	return out
}

// PolicyGaps lists the unmapped symbols that have been admitted un-gated,
// with admission counts. Surfacing these loudly is deliberate: an unmapped
// symbol is a configuration-completeness problem, not an intentional policy.
func (c *Controller) PolicyGaps() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.policyGaps))
	for k, v := range c.policyGaps {
		out[k] = v
	}
	return out
}
