package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/correlation"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Stress-test a hypothetical book at a volatility level",
	Long: `Stress replays a hypothetical set of positions through the correlation rules
at the given volatility level and reports the rule-capped loss estimate next
to the unprotected loss, plus a risk level.

Example:
  decision stress --vix 45 --position SPY=25000 --position QQQ=20000 --position GLD=10000`,
	RunE: runStress,
}

var (
	stVIX       float64
	stPositions []string
)

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().Float64Var(&stVIX, "vix", 0, "scenario volatility level (required)")
	stressCmd.Flags().StringArrayVar(&stPositions, "position", nil, "scenario position as SYMBOL=NOTIONAL (repeatable, required)")

	stressCmd.MarkFlagRequired("vix")
	stressCmd.MarkFlagRequired("position")
}

func runStress(cmd *cobra.Command, args []string) error {
	eng, j, err := newEngine()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	scenario := make([]correlation.ScenarioPosition, 0, len(stPositions))
	for _, pair := range stPositions {
		sym, val, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("bad --position %q, want SYMBOL=NOTIONAL", pair)
		}
		notional, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("bad --position %q: %w", pair, err)
		}
		scenario = append(scenario, correlation.ScenarioPosition{
			Symbol:   strings.ToUpper(sym),
			Notional: notional,
		})
	}

	result := eng.Correlation().StressTest(scenario, stVIX)
	return printJSON(result)
}
