// Package cmd holds the decision CLI. Each subcommand builds a fresh engine
// from the policy file, runs one evaluation against caller-supplied market
// state, and prints the decision as JSON. The CLI never talks to a broker or
// a data feed; snapshots come in on flags.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/engine"
	"github.com/voldesk/options-core/internal/journal"
)

var (
	cfgPath     string
	journalPath string
)

var rootCmd = &cobra.Command{
	Use:   "decision",
	Short: "Options position decision core",
	Long: `decision evaluates options-position questions against the layered risk
policy: volatility regime, account phase, Kelly-capped sizing, correlation
group caps, defensive lifecycle rules, and the emergency protocol.

Market and account state are passed in on flags; every decision is printed
as JSON and appended to the SQLite journal when one is configured.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine; flags and real env still apply.
		_ = godotenv.Load()
		if cfgPath == "" {
			cfgPath = os.Getenv("OPTIONS_CORE_CONFIG")
		}
		if journalPath == "" {
			journalPath = os.Getenv("OPTIONS_CORE_JOURNAL")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "policy file (default $OPTIONS_CORE_CONFIG, else built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&journalPath, "journal", "j", "", "SQLite journal path (default $OPTIONS_CORE_JOURNAL, else no journal)")
}

func loadPolicy() (config.Root, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// newEngine builds an engine plus an optional journal. The caller closes the
// returned journal when non-nil.
func newEngine() (*engine.Engine, *journal.Journal, error) {
	cfg, err := loadPolicy()
	if err != nil {
		return nil, nil, err
	}
	if journalPath == "" {
		journalPath = cfg.JournalPath
	}
	var opts []engine.Option
	var j *journal.Journal
	if journalPath != "" {
		j, err = journal.Open(journalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, engine.WithJournal(j))
	}
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		if j != nil {
			j.Close()
		}
		return nil, nil, err
	}
	return eng, j, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
