package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/sizing"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute the capped Kelly risk fraction for an edge estimate",
	Long: `Size applies the fractional-Kelly formula to the given win rate and average
win/loss magnitudes, scaled by the conservatism multiplier and clamped to the
per-trade risk cap. Negative-edge inputs produce a zero fraction with
should_trade=false rather than an error.

Example:
  decision size --win-rate 0.70 --avg-win 150 --avg-loss 300`,
	RunE: runSize,
}

var (
	szWinRate float64
	szAvgWin  float64
	szAvgLoss float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)

	sizeCmd.Flags().Float64Var(&szWinRate, "win-rate", 0, "historical win probability in (0,1) (required)")
	sizeCmd.Flags().Float64Var(&szAvgWin, "avg-win", 0, "average win magnitude (required)")
	sizeCmd.Flags().Float64Var(&szAvgLoss, "avg-loss", 0, "average loss magnitude, positive (required)")

	sizeCmd.MarkFlagRequired("win-rate")
	sizeCmd.MarkFlagRequired("avg-win")
	sizeCmd.MarkFlagRequired("avg-loss")
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, err := loadPolicy()
	if err != nil {
		return err
	}
	rec, err := sizing.Kelly(szWinRate, szAvgWin, szAvgLoss, cfg.Sizing)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Fraction    float64 `json:"fraction"`
		ShouldTrade bool    `json:"should_trade"`
	}{rec.Fraction, rec.ShouldTrade})
}
