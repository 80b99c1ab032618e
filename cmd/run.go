package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/notify"
	"github.com/tlanglois/sillon/internal/scrobble"
	"github.com/tlanglois/sillon/internal/tracker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking daemon",
	Long: `Connects to MPD and tracks playback until interrupted. On startup,
and every four hours after (configurable), the full catalog is
reconciled against MPD's play counters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, mpd, err := openApp()
		if err != nil {
			return err
		}
		defer st.Close()
		defer mpd.Close()
		defer logging.Sync()

		opts := tracker.EngineOptions{
			Store:     st,
			Catalog:   mpd,
			Scheduler: tracker.NewScheduler(cfg.GetFullSyncInterval()),
		}

		if cfg.RankNotificationsEnabled() {
			notifier, err := notify.New()
			if err == nil {
				opts.Notifier = notifier
				opts.NotifyRankChanges = true
			}
		}

		if cfg.HasLastfmConfig() {
			opts.Scrobbler = scrobble.New(
				cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, cfg.Lastfm.SessionKey)
			logging.L().Info("scrobbling enabled")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logging.L().Info("sillon started",
			zap.String("mpd", cfg.MPD.Address),
			zap.Duration("full_sync_interval", cfg.GetFullSyncInterval()))

		engine := tracker.NewEngine(opts)
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		logging.L().Info("sillon stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
