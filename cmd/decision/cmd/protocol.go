package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/engine"
	"github.com/voldesk/options-core/internal/marketdata"
)

var protocolCmd = &cobra.Command{
	Use:   "protocol",
	Short: "Resolve the emergency protocol directive for a volatility level",
	Long: `Protocol maps a volatility index reading onto the escalation ladder
(normal, preventive, elevated, emergency) and prints the directive: headroom
factor, entry blocking, exposure shrink, and same-day close orders.

Example:
  decision protocol --vix 37.2`,
	RunE: runProtocol,
}

var prVIX float64

func init() {
	rootCmd.AddCommand(protocolCmd)

	protocolCmd.Flags().Float64Var(&prVIX, "vix", 0, "current volatility index reading (required)")
	protocolCmd.MarkFlagRequired("vix")
}

func runProtocol(cmd *cobra.Command, args []string) error {
	eng, j, err := newEngine()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	d, err := eng.CurrentProtocol(engine.MarketSnapshot{
		VIX: marketdata.Value(prVIX, time.Now()),
		Now: time.Now(),
	})
	if err != nil {
		return err
	}
	return printJSON(d)
}
