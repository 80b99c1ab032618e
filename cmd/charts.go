package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tlanglois/sillon/internal/charts"
	"github.com/tlanglois/sillon/internal/logging"
)

var (
	chartsPeriod string
	chartsLimit  int
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Show the play-count charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := parseView(chartsPeriod)
		if err != nil {
			return err
		}

		_, st, mpd, err := openApp()
		if err != nil {
			return err
		}
		defer st.Close()
		defer mpd.Close()
		defer logging.Sync()

		entries, _, err := charts.NewAggregator(st).Ranked(view, time.Now())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No plays recorded yet. Run `sillon sync` or start the daemon.")
			return nil
		}
		if chartsLimit > 0 && len(entries) > chartsLimit {
			entries = entries[:chartsLimit]
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\t\tPLAYS\tARTIST\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
				e.Rank, movementLabel(e.Movement), e.Plays, e.Track.Artist, e.Track.Title)
		}
		return w.Flush()
	},
}

func parseView(period string) (charts.View, error) {
	switch period {
	case "all", "":
		return charts.ViewAllTime, nil
	case "7d", "week":
		return charts.ViewWeek, nil
	case "30d", "month":
		return charts.ViewMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q (want all, 7d or 30d)", period)
	}
}

func movementLabel(m charts.Movement) string {
	switch m.Kind {
	case charts.MovementNew:
		return "new"
	case charts.MovementUp:
		return fmt.Sprintf("+%s", humanize.Comma(int64(m.Delta)))
	case charts.MovementDown:
		return fmt.Sprintf("-%s", humanize.Comma(int64(m.Delta)))
	default:
		return "="
	}
}

func init() {
	chartsCmd.Flags().StringVarP(&chartsPeriod, "period", "p", "all",
		"chart period: all, 7d or 30d")
	chartsCmd.Flags().IntVarP(&chartsLimit, "limit", "n", 20,
		"number of entries to show (0 for all)")
	rootCmd.AddCommand(chartsCmd)
}
