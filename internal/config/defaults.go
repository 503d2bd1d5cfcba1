package config

// Default returns the built-in RiskParameters table. It mirrors the production
// policy shipped in configs/risk_parameters.yaml and is used by the CLI when
// no table is supplied and by tests.
func Default() Root {
	c := Root{
		Version: "builtin-1",
		Regime: RegimeThresholds{
			VeryLowBelow: 15,
			LowBelow:     20,
			NormalBelow:  30,
			HighBelow:    40,
		},
		BuyingPower: map[int]map[string]float64{
			1: {"very_low": 0.25, "low": 0.30, "normal": 0.35, "high": 0.30, "very_high": 0.20},
			2: {"very_low": 0.30, "low": 0.35, "normal": 0.45, "high": 0.35, "very_high": 0.25},
			3: {"very_low": 0.35, "low": 0.45, "normal": 0.55, "high": 0.40, "very_high": 0.30},
			4: {"very_low": 0.40, "low": 0.50, "normal": 0.60, "high": 0.45, "very_high": 0.30},
		},
		Phases: []PhaseTier{
			{
				Phase: 1, MinEquity: 2_000,
				Strategies:      []string{"put_credit_spread", "covered_call"},
				MaxPositions:    3,
				MaxRiskPerTrade: 0.02,
				DefaultUnitSize: 1,
				Description:     "capital preservation: defined-risk spreads only",
			},
			{
				Phase: 2, MinEquity: 10_000,
				Strategies:      []string{"put_credit_spread", "covered_call", "iron_condor", "cash_secured_put"},
				MaxPositions:    5,
				MaxRiskPerTrade: 0.03,
				DefaultUnitSize: 2,
				Description:     "steady growth: defined risk plus cash-secured puts",
			},
			{
				Phase: 3, MinEquity: 50_000,
				Strategies:      []string{"put_credit_spread", "covered_call", "iron_condor", "cash_secured_put", "short_strangle"},
				MaxPositions:    8,
				MaxRiskPerTrade: 0.04,
				DefaultUnitSize: 3,
				Description:     "expansion: undefined-risk strangles unlocked",
			},
			{
				Phase: 4, MinEquity: 250_000,
				Strategies:      []string{"*"},
				MaxPositions:    12,
				MaxRiskPerTrade: 0.05,
				DefaultUnitSize: 5,
				Description:     "full book: all strategies",
			},
		},
		Strategies: map[string]StrategyRule{
			"put_credit_spread": {WinRatePrior: 0.72, ProfitTarget: 0.50, StopLossMultiple: 2.0},
			"covered_call":      {WinRatePrior: 0.80, ProfitTarget: 0.60, StopLossMultiple: 3.0},
			"iron_condor":       {WinRatePrior: 0.68, ProfitTarget: 0.50, StopLossMultiple: 2.0},
			"cash_secured_put":  {WinRatePrior: 0.75, ProfitTarget: 0.55, StopLossMultiple: 2.5},
			"short_strangle":    {WinRatePrior: 0.70, ProfitTarget: 0.50, StopLossMultiple: 2.5},
		},
		Correlation: Correlation{
			Groups: []Group{
				{Name: "equity_index_futures", Symbols: []string{"/ES", "/MES", "/NQ", "/MNQ", "/RTY"}, CrisisWeight: 0.95, BaseLimit: 2},
				{Name: "equity_index_etf", Symbols: []string{"SPY", "QQQ", "IWM", "DIA"}, CrisisWeight: 0.95, BaseLimit: 2},
				{Name: "bonds", Symbols: []string{"TLT", "IEF", "/ZB", "/ZN"}, CrisisWeight: 0.40, BaseLimit: 2},
				{Name: "gold", Symbols: []string{"GLD", "/GC", "/MGC"}, CrisisWeight: 0.30, BaseLimit: 2},
				{Name: "oil", Symbols: []string{"USO", "/CL", "/MCL"}, CrisisWeight: 0.60, BaseLimit: 2},
				{Name: "volatility", Symbols: []string{"VXX", "UVXY"}, CrisisWeight: 0.85, BaseLimit: 1},
			},
			EquityLikeGroups: []string{"equity_index_futures", "equity_index_etf"},
			EquityLikeCap:    3,
		},
		Defense: Defense{
			DefendDTE:        21,
			RollMinDTE:       30,
			RollMaxDTE:       45,
			AssignmentDTE:    1,
			PutITMBufferPct:  0.02,
			CallITMBufferPct: 0.01,
		},
		Sizing: Sizing{
			KellyMultiplier: 0.25,
			PerTradeRiskCap: 0.05,
		},
		Emergency: Emergency{
			PreventiveVIX:     30,
			ElevatedVIX:       35,
			EmergencyVIX:      40,
			HeadroomFactor:    0.5,
			ExposureShrinkPct: 25,
		},
	}
	c.applyDefaults()
	return c
}
