// Package cmd defines the sillon command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tlanglois/sillon/internal/catalog"
	"github.com/tlanglois/sillon/internal/config"
	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "sillon",
	Short: "Sillon tracks what you actually listen to on MPD.",
	Long: `Sillon is a headless listening tracker for MPD. It records a play
fact for every track you listen to at least halfway through, folds in
plays that happened while it was not running by reconciling MPD's play
counters, and derives ranked charts from the resulting log.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads configuration and opens the store and MPD connection
// shared by every subcommand.
func openApp() (*config.Config, *store.Manager, *catalog.MPD, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Options{Level: cfg.Log.Level, Path: cfg.Log.Path})

	var st *store.Manager
	if cfg.DatabasePath != "" {
		st, err = store.OpenPath(cfg.DatabasePath)
	} else {
		st, err = store.Open()
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	mpd := catalog.NewMPD(cfg.MPD.Address, cfg.MPD.Password)
	return cfg, st, mpd, nil
}
