package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/tracker"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full reconciliation pass and exit",
	Long: `Reconciles every track in the MPD database against its play counter,
recording a play fact for each play that happened since the last pass.
Useful before consulting charts when the daemon is not running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, mpd, err := openApp()
		if err != nil {
			return err
		}
		defer st.Close()
		defer mpd.Close()
		defer logging.Sync()

		engine := tracker.NewEngine(tracker.EngineOptions{
			Store:     st,
			Catalog:   mpd,
			Scheduler: tracker.NewScheduler(cfg.GetFullSyncInterval()),
		})

		report, err := engine.FullSync(cmd.Context(), time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("Reconciled %d tracks, recorded %d new plays.\n",
			report.TracksProcessed, report.FactsCreated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
