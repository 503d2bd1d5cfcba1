package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/engine"
	"github.com/voldesk/options-core/internal/marketdata"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one candidate through the admission gate pipeline",
	Long: `Evaluate runs a proposed position through every admission gate in order:
emergency protocol, account phase, regime buying-power headroom, and the
correlation group caps. The decision names the gate that denied it.

Example:
  decision evaluate --symbol SPY --strategy put_credit_spread --equity 52000 --vix 24.5 --bp-used 0.30`,
	RunE: runEvaluate,
}

var (
	evSymbol   string
	evStrategy string
	evEquity   float64
	evBPUsed   float64
	evVIX      float64
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evSymbol, "symbol", "s", "", "underlying symbol (required)")
	evaluateCmd.Flags().StringVar(&evStrategy, "strategy", "", "strategy name (required)")
	evaluateCmd.Flags().Float64VarP(&evEquity, "equity", "e", 0, "account equity (required)")
	evaluateCmd.Flags().Float64Var(&evBPUsed, "bp-used", 0, "fraction of buying power already committed")
	evaluateCmd.Flags().Float64Var(&evVIX, "vix", 0, "current volatility index reading (required)")

	evaluateCmd.MarkFlagRequired("symbol")
	evaluateCmd.MarkFlagRequired("strategy")
	evaluateCmd.MarkFlagRequired("equity")
	evaluateCmd.MarkFlagRequired("vix")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	eng, j, err := newEngine()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	dec, err := eng.EvaluateAdmission(
		engine.Candidate{Symbol: evSymbol, Strategy: evStrategy},
		engine.AccountSnapshot{Equity: evEquity, BuyingPowerUsed: evBPUsed},
		engine.MarketSnapshot{VIX: marketdata.Value(evVIX, time.Now()), Now: time.Now()},
	)
	if err != nil {
		return err
	}
	// One-shot invocation: nothing fills, so give the reserved slot back.
	if dec.Allowed {
		eng.ReleaseAdmission(dec.PositionID)
	}
	return printJSON(dec)
}
