package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the decision journal",
	Long: `Journal reads back persisted decisions, newest first.

Examples:
  decision journal --symbol SPY --limit 20
  decision journal --day 2026-08-26`,
	RunE: runJournal,
}

var (
	jnSymbol string
	jnDay    string
	jnLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVarP(&jnSymbol, "symbol", "s", "", "filter by underlying symbol")
	journalCmd.Flags().StringVarP(&jnDay, "day", "d", "", "filter by UTC day (2006-01-02)")
	journalCmd.Flags().IntVarP(&jnLimit, "limit", "n", 50, "max records for --symbol queries")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadPolicy()
	if err != nil {
		return err
	}
	path := journalPath
	if path == "" {
		path = cfg.JournalPath
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	var records []journal.Record
	switch {
	case jnSymbol != "":
		records, err = j.BySymbol(jnSymbol, jnLimit)
	case jnDay != "":
		records, err = j.Day(jnDay)
	default:
		return fmt.Errorf("one of --symbol or --day is required")
	}
	if err != nil {
		return err
	}
	return printJSON(records)
}
