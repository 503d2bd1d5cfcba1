package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/engine"
	"github.com/voldesk/options-core/internal/lifecycle"
	"github.com/voldesk/options-core/internal/marketdata"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the defensive rule ladder over a book of positions",
	Long: `Sweep loads a position book from a JSON file, evaluates every open position
against the defensive rules (assignment risk, the 21-DTE rule, profit target,
stop loss), and prints one instruction per position.

The positions file is a JSON array:
  [{"id":"p1","symbol":"SPY","strategy":"put_credit_spread",
    "expiry":"2026-09-18","strike":630,"right":"put","quantity":-1,
    "credit":2.40,"mark":1.10}]

Example:
  decision sweep --positions book.json --vix 33 --spot SPY=612.5 --spot QQQ=540`,
	RunE: runSweep,
}

var (
	swPositionsPath string
	swVIX           float64
	swSpots         []string
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&swPositionsPath, "positions", "p", "", "path to positions JSON (required)")
	sweepCmd.Flags().Float64Var(&swVIX, "vix", 0, "current volatility index reading (required)")
	sweepCmd.Flags().StringArrayVar(&swSpots, "spot", nil, "underlying spot as SYMBOL=PRICE (repeatable)")

	sweepCmd.MarkFlagRequired("positions")
	sweepCmd.MarkFlagRequired("vix")
}

type positionFile struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Strategy string  `json:"strategy"`
	Expiry   string  `json:"expiry"` // 2006-01-02
	Strike   float64 `json:"strike"`
	Right    string  `json:"right"`
	Quantity int     `json:"quantity"`
	Credit   float64 `json:"credit"`
	Mark     float64 `json:"mark"`
}

func runSweep(cmd *cobra.Command, args []string) error {
	eng, j, err := newEngine()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	raw, err := os.ReadFile(swPositionsPath)
	if err != nil {
		return err
	}
	var entries []positionFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", swPositionsPath, err)
	}
	now := time.Now()
	for _, en := range entries {
		expiry, err := time.Parse("2006-01-02", en.Expiry)
		if err != nil {
			return fmt.Errorf("position %s: bad expiry %q: %w", en.ID, en.Expiry, err)
		}
		if err := eng.Book().Register(lifecycle.Position{
			ID: en.ID, Symbol: en.Symbol, Strategy: en.Strategy,
			Expiry: expiry, Strike: en.Strike, Right: lifecycle.Right(en.Right),
			Quantity: en.Quantity, Credit: en.Credit, Mark: en.Mark,
		}); err != nil {
			return err
		}
	}

	spots, err := parseSpots(swSpots)
	if err != nil {
		return err
	}
	instructions, err := eng.Sweep(engine.MarketSnapshot{
		VIX:  marketdata.Value(swVIX, now),
		Now:  now,
		Spot: spots,
	})
	if err != nil {
		return err
	}
	return printJSON(instructions)
}

func parseSpots(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		sym, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad --spot %q, want SYMBOL=PRICE", pair)
		}
		px, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --spot %q: %w", pair, err)
		}
		out[strings.ToUpper(sym)] = px
	}
	return out, nil
}
