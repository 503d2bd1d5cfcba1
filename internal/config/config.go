// Package config loads and validates the RiskParameters policy table. The
// table is loaded once at process start, is immutable afterwards, and is
// replaced wholesale on reload. Invalid configuration is fatal at load time,
// never silently corrected.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegimeThresholds are the ascending volatility-index band boundaries.
// Bands are half-open [low, high): a reading exactly at a boundary belongs to
// the higher band.
type RegimeThresholds struct {
	VeryLowBelow float64 `yaml:"very_low_below"` // 15
	LowBelow     float64 `yaml:"low_below"`      // 20
	NormalBelow  float64 `yaml:"normal_below"`   // 30
	HighBelow    float64 `yaml:"high_below"`     // 40
}

// PhaseTier describes one account-equity tier. Strategies may be the wildcard
// ["*"] meaning all strategies are allowed.
type PhaseTier struct {
	Phase           int      `yaml:"phase"`
	MinEquity       float64  `yaml:"min_equity"`
	Strategies      []string `yaml:"strategies"`
	MaxPositions    int      `yaml:"max_positions"`
	MaxRiskPerTrade float64  `yaml:"max_risk_per_trade"`
	DefaultUnitSize int      `yaml:"default_unit_size"`
	Description     string   `yaml:"description"`
}

// StrategyRule is the data-driven per-strategy rule table entry. One table
// keyed by strategy tag replaces per-strategy rule subclasses.
type StrategyRule struct {
	WinRatePrior     float64 `yaml:"win_rate_prior"`
	ProfitTarget     float64 `yaml:"profit_target"`      // fraction of max profit, e.g. 0.50
	StopLossMultiple float64 `yaml:"stop_loss_multiple"` // multiple of credit received, e.g. 2.5
}

// Group defines one correlation group: instruments assumed to move together
// under stress, sharing a position-count cap.
type Group struct {
	Name         string   `yaml:"name"`
	Symbols      []string `yaml:"symbols"`
	CrisisWeight float64  `yaml:"crisis_weight"` // risk-scoring weight, not a hard constraint
	BaseLimit    int      `yaml:"base_limit"`
}

// Correlation holds the group table plus the combined equity-like rule: the
// two designated broad-index groups share one aggregate cap independent of
// their individual caps.
type Correlation struct {
	Groups           []Group  `yaml:"groups"`
	EquityLikeGroups []string `yaml:"equity_like_groups"`
	EquityLikeCap    int      `yaml:"equity_like_cap"`
}

// Defense holds the lifecycle state machine thresholds.
type Defense struct {
	DefendDTE        int     `yaml:"defend_dte"`         // absolute rule, no exceptions: 21
	RollMinDTE       int     `yaml:"roll_min_dte"`       // 30
	RollMaxDTE       int     `yaml:"roll_max_dte"`       // 45
	AssignmentDTE    int     `yaml:"assignment_dte"`     // 1
	PutITMBufferPct  float64 `yaml:"put_itm_buffer_pct"` // 0.02
	CallITMBufferPct float64 `yaml:"call_itm_buffer_pct"`
}

// Sizing holds the Kelly policy constants.
type Sizing struct {
	KellyMultiplier float64 `yaml:"kelly_multiplier"`   // conservatism factor, e.g. 0.25
	PerTradeRiskCap float64 `yaml:"per_trade_risk_cap"` // hard cap, e.g. 0.05
}

// Emergency holds the escalation-ladder thresholds. The three boundaries must
// be distinct and strictly ascending; a prior defect conflated two of these
// constants, so Validate refuses any overlap.
type Emergency struct {
	PreventiveVIX     float64 `yaml:"preventive_vix"`      // 30
	ElevatedVIX       float64 `yaml:"elevated_vix"`        // 35
	EmergencyVIX      float64 `yaml:"emergency_vix"`       // 40
	HeadroomFactor    float64 `yaml:"headroom_factor"`     // preventive new-entry BP scale, e.g. 0.5
	ExposureShrinkPct float64 `yaml:"exposure_shrink_pct"` // elevated, e.g. 25
}

// Root is the complete, versioned RiskParameters table.
type Root struct {
	Version     string                        `yaml:"version"`
	Regime      RegimeThresholds              `yaml:"regime"`
	BuyingPower map[int]map[string]float64    `yaml:"buying_power"` // phase -> regime name -> max BP fraction
	Phases      []PhaseTier                   `yaml:"phases"`
	Strategies  map[string]StrategyRule       `yaml:"strategies"`
	Correlation Correlation                   `yaml:"correlation"`
	Defense     Defense                       `yaml:"defense"`
	Sizing      Sizing                        `yaml:"sizing"`
	JournalPath string                        `yaml:"journal_path"`
	Emergency   Emergency                     `yaml:"emergency"`
}

// ValidationError aggregates everything wrong with a policy table so the
// operator sees the full list at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid risk parameters: %s", strings.Join(e.Problems, "; "))
}

// Load reads, defaults and validates a RiskParameters table. The core refuses
// to start on a table that fails validation.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Root) applyDefaults() {
	if c.Version == "" {
		c.Version = "unversioned"
	}
	if c.Sizing.KellyMultiplier == 0 {
		c.Sizing.KellyMultiplier = 0.25
	}
	if c.Sizing.PerTradeRiskCap == 0 {
		c.Sizing.PerTradeRiskCap = 0.05
	}
	if c.Defense.DefendDTE == 0 {
		c.Defense.DefendDTE = 21
	}
	if c.Defense.RollMinDTE == 0 {
		c.Defense.RollMinDTE = 30
	}
	if c.Defense.RollMaxDTE == 0 {
		c.Defense.RollMaxDTE = 45
	}
	if c.Defense.AssignmentDTE == 0 {
		c.Defense.AssignmentDTE = 1
	}
	if c.Defense.PutITMBufferPct == 0 {
		c.Defense.PutITMBufferPct = 0.02
	}
	if c.Defense.CallITMBufferPct == 0 {
		c.Defense.CallITMBufferPct = 0.01
	}
	if c.Emergency.HeadroomFactor == 0 {
		c.Emergency.HeadroomFactor = 0.5
	}
	if c.Emergency.ExposureShrinkPct == 0 {
		c.Emergency.ExposureShrinkPct = 25
	}
	if c.JournalPath == "" {
		c.JournalPath = "data/decisions.sqlite"
	}
}

// Validate checks ascending thresholds, non-overlapping bands, positive
// limits, and that every traded symbol maps to at most one correlation group.
func (c *Root) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	// Regime bands must be strictly ascending.
	r := c.Regime
	if !(r.VeryLowBelow < r.LowBelow && r.LowBelow < r.NormalBelow && r.NormalBelow < r.HighBelow) {
		add("regime thresholds must be strictly ascending, got %v/%v/%v/%v",
			r.VeryLowBelow, r.LowBelow, r.NormalBelow, r.HighBelow)
	}
	if r.VeryLowBelow <= 0 {
		add("regime very_low_below must be positive")
	}

	// Phase tiers: ascending min_equity, phase numbers 1..4, positive limits.
	tiers := append([]PhaseTier(nil), c.Phases...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Phase < tiers[j].Phase })
	prevEquity := -1.0
	for _, t := range tiers {
		if t.Phase < 1 || t.Phase > 4 {
			add("phase %d out of range 1-4", t.Phase)
		}
		if t.MinEquity <= prevEquity {
			add("phase %d min_equity %v not ascending", t.Phase, t.MinEquity)
		}
		prevEquity = t.MinEquity
		if t.MaxPositions <= 0 {
			add("phase %d max_positions must be positive", t.Phase)
		}
		if t.MaxRiskPerTrade <= 0 || t.MaxRiskPerTrade > 1 {
			add("phase %d max_risk_per_trade %v out of (0,1]", t.Phase, t.MaxRiskPerTrade)
		}
		if len(t.Strategies) == 0 {
			add("phase %d has no allowed strategies", t.Phase)
		}
	}
	if len(tiers) == 0 {
		add("no phase tiers defined")
	}

	// Buying-power fractions in (0, 1].
	for phase, byRegime := range c.BuyingPower {
		for regime, frac := range byRegime {
			if frac <= 0 || frac > 1 {
				add("buying_power[%d][%s]=%v out of (0,1]", phase, regime, frac)
			}
		}
	}

	// Strategy rules.
	for tag, rule := range c.Strategies {
		if rule.WinRatePrior <= 0 || rule.WinRatePrior >= 1 {
			add("strategy %s win_rate_prior %v out of (0,1)", tag, rule.WinRatePrior)
		}
		if rule.ProfitTarget <= 0 || rule.ProfitTarget > 1 {
			add("strategy %s profit_target %v out of (0,1]", tag, rule.ProfitTarget)
		}
		if rule.StopLossMultiple <= 0 {
			add("strategy %s stop_loss_multiple must be positive", tag)
		}
	}

	// Sizing policy.
	if c.Sizing.KellyMultiplier <= 0 || c.Sizing.KellyMultiplier > 1 {
		add("sizing kelly_multiplier %v out of (0,1]", c.Sizing.KellyMultiplier)
	}
	if c.Sizing.PerTradeRiskCap <= 0 || c.Sizing.PerTradeRiskCap > 1 {
		add("sizing per_trade_risk_cap %v out of (0,1]", c.Sizing.PerTradeRiskCap)
	}

	// Correlation groups: unique names, every symbol in at most one group,
	// positive limits, weights in (0,1].
	seenGroup := map[string]bool{}
	symbolOwner := map[string]string{}
	for _, g := range c.Correlation.Groups {
		if seenGroup[g.Name] {
			add("duplicate correlation group %q", g.Name)
		}
		seenGroup[g.Name] = true
		if g.BaseLimit < 1 {
			add("group %s base_limit must be >= 1", g.Name)
		}
		if g.CrisisWeight <= 0 || g.CrisisWeight > 1 {
			add("group %s crisis_weight %v out of (0,1]", g.Name, g.CrisisWeight)
		}
		for _, sym := range g.Symbols {
			if owner, dup := symbolOwner[sym]; dup {
				add("symbol %s mapped to both %s and %s", sym, owner, g.Name)
				continue
			}
			symbolOwner[sym] = g.Name
		}
	}
	for _, name := range c.Correlation.EquityLikeGroups {
		if !seenGroup[name] {
			add("equity_like_groups references unknown group %q", name)
		}
	}
	if n := len(c.Correlation.EquityLikeGroups); n > 0 && c.Correlation.EquityLikeCap < 1 {
		add("equity_like_cap must be >= 1 when equity-like groups are designated")
	}

	// Emergency ladder: boundaries distinct and strictly ascending.
	e := c.Emergency
	if !(e.PreventiveVIX < e.ElevatedVIX && e.ElevatedVIX < e.EmergencyVIX) {
		add("emergency thresholds must be distinct and strictly ascending, got %v/%v/%v",
			e.PreventiveVIX, e.ElevatedVIX, e.EmergencyVIX)
	}
	if e.HeadroomFactor <= 0 || e.HeadroomFactor > 1 {
		add("emergency headroom_factor %v out of (0,1]", e.HeadroomFactor)
	}
	if e.ExposureShrinkPct <= 0 || e.ExposureShrinkPct > 100 {
		add("emergency exposure_shrink_pct %v out of (0,100]", e.ExposureShrinkPct)
	}

	// Defense thresholds.
	d := c.Defense
	if d.DefendDTE <= 0 {
		add("defense defend_dte must be positive")
	}
	if d.RollMinDTE >= d.RollMaxDTE {
		add("defense roll window [%d,%d] is empty", d.RollMinDTE, d.RollMaxDTE)
	}
	if d.RollMinDTE <= d.DefendDTE {
		add("defense roll_min_dte %d must exceed defend_dte %d", d.RollMinDTE, d.DefendDTE)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// GroupFor returns the owning correlation group for a symbol, if any.
func (c *Root) GroupFor(symbol string) (Group, bool) {
	for _, g := range c.Correlation.Groups {
		for _, s := range g.Symbols {
			if s == symbol {
				return g, true
			}
		}
	}
	return Group{}, false
}
