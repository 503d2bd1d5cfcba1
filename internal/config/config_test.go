package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTableValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("built-in table fails validation: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Root)
		problem string
	}{
		{
			"equal regime boundaries",
			func(c *Root) { c.Regime.LowBelow = c.Regime.VeryLowBelow },
			"regime thresholds",
		},
		{
			"descending regime boundaries",
			func(c *Root) { c.Regime.HighBelow = 10 },
			"regime thresholds",
		},
		{
			"emergency thresholds conflated",
			func(c *Root) { c.Emergency.ElevatedVIX = c.Emergency.EmergencyVIX },
			"emergency thresholds",
		},
		{
			"symbol in two groups",
			func(c *Root) { c.Correlation.Groups[1].Symbols = append(c.Correlation.Groups[1].Symbols, "TLT") },
			"mapped to both",
		},
		{
			"duplicate group name",
			func(c *Root) { c.Correlation.Groups[1].Name = c.Correlation.Groups[0].Name },
			"duplicate correlation group",
		},
		{
			"equity-like references unknown group",
			func(c *Root) { c.Correlation.EquityLikeGroups = []string{"crypto"} },
			"unknown group",
		},
		{
			"kelly multiplier above one",
			func(c *Root) { c.Sizing.KellyMultiplier = 1.5 },
			"kelly_multiplier",
		},
		{
			"phase out of range",
			func(c *Root) { c.Phases[0].Phase = 7 },
			"out of range",
		},
		{
			"buying power fraction above one",
			func(c *Root) { c.BuyingPower[2]["normal"] = 1.2 },
			"buying_power",
		},
		{
			"roll window inside the defend threshold",
			func(c *Root) { c.Defense.RollMinDTE = 10 },
			"roll_min_dte",
		},
		{
			"empty roll window",
			func(c *Root) { c.Defense.RollMinDTE = 50 },
			"roll window",
		},
		{
			"strategy profit target above one",
			func(c *Root) {
				r := c.Strategies["iron_condor"]
				r.ProfitTarget = 1.3
				c.Strategies["iron_condor"] = r
			},
			"profit_target",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted an invalid table")
			}
			if !strings.Contains(err.Error(), tc.problem) {
				t.Errorf("error %q does not mention %q", err, tc.problem)
			}
		})
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := Default()
	cfg.Regime.LowBelow = 5
	cfg.Sizing.PerTradeRiskCap = 2

	err := cfg.Validate()
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(ve.Problems) < 2 {
		t.Errorf("Problems = %v, want both issues reported at once", ve.Problems)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	// A minimal table: everything not specified comes from defaults and the
	// result must still validate.
	full := Default()
	minimal := `
version: test-1
regime:
  very_low_below: 15
  low_below: 20
  normal_below: 30
  high_below: 40
buying_power:
  1: {very_low: 0.25, low: 0.30, normal: 0.35, high: 0.30, very_high: 0.20}
phases:
  - phase: 1
    min_equity: 2000
    strategies: [put_credit_spread]
    max_positions: 3
    max_risk_per_trade: 0.02
    default_unit_size: 1
emergency:
  preventive_vix: 30
  elevated_vix: 35
  emergency_vix: 40
`
	path := filepath.Join(t.TempDir(), "risk_parameters.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defense.DefendDTE != full.Defense.DefendDTE {
		t.Errorf("DefendDTE = %d, want defaulted %d", cfg.Defense.DefendDTE, full.Defense.DefendDTE)
	}
	if cfg.Sizing.KellyMultiplier != 0.25 || cfg.Sizing.PerTradeRiskCap != 0.05 {
		t.Errorf("sizing not defaulted: %+v", cfg.Sizing)
	}
	if cfg.Emergency.HeadroomFactor != 0.5 {
		t.Errorf("HeadroomFactor = %v, want defaulted 0.5", cfg.Emergency.HeadroomFactor)
	}
	if cfg.Version != "test-1" {
		t.Errorf("Version = %q", cfg.Version)
	}
}

func TestLoadRejectsInvalidTable(t *testing.T) {
	bad := `
regime:
  very_low_below: 40
  low_below: 30
  normal_below: 20
  high_below: 15
phases:
  - phase: 1
    min_equity: 2000
    strategies: [put_credit_spread]
    max_positions: 3
    max_risk_per_trade: 0.02
emergency:
  preventive_vix: 30
  elevated_vix: 30
  emergency_vix: 30
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a table with descending bands and conflated emergency thresholds")
	}
}

func TestGroupFor(t *testing.T) {
	cfg := Default()

	g, ok := cfg.GroupFor("SPY")
	if !ok || g.Name != "equity_index_etf" {
		t.Errorf("GroupFor(SPY) = %+v, %v", g, ok)
	}
	if _, ok := cfg.GroupFor("TSLA"); ok {
		t.Error("GroupFor(TSLA) should report unmapped")
	}
}
