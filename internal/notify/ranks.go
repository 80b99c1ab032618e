package notify

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tlanglois/sillon/internal/charts"
)

// maxRankLines bounds the notification body; a full-catalog sync can
// reshuffle many ranks at once.
const maxRankLines = 5

// rankChangeTimeout is how long chart notifications stay on screen.
const rankChangeTimeout int32 = 8000

// FormatRankChanges builds one notification summarizing chart movement
// for a view. Returns false when there is nothing worth showing.
func FormatRankChanges(view charts.View, changes []charts.RankChange) (Notification, bool) {
	if len(changes) == 0 {
		return Notification{}, false
	}

	var lines []string
	for _, c := range changes {
		if len(lines) == maxRankLines {
			lines = append(lines, fmt.Sprintf("…and %d more", len(changes)-maxRankLines))
			break
		}
		lines = append(lines, formatChange(c))
	}

	return Notification{
		Title:   fmt.Sprintf("Chart update (%s)", viewLabel(view)),
		Body:    strings.Join(lines, "\n"),
		Timeout: rankChangeTimeout,
		Urgency: UrgencyLow,
	}, true
}

func formatChange(c charts.RankChange) string {
	name := c.Track.Title
	if c.Track.Artist != "" {
		name = c.Track.Artist + " – " + name
	}
	if c.OldRank == 0 {
		return fmt.Sprintf("%s entered at %s", name, humanize.Ordinal(c.NewRank))
	}
	if c.NewRank < c.OldRank {
		return fmt.Sprintf("%s climbed to %s (from %s)",
			name, humanize.Ordinal(c.NewRank), humanize.Ordinal(c.OldRank))
	}
	return fmt.Sprintf("%s dropped to %s (from %s)",
		name, humanize.Ordinal(c.NewRank), humanize.Ordinal(c.OldRank))
}

func viewLabel(view charts.View) string {
	switch view {
	case charts.ViewWeek:
		return "last 7 days"
	case charts.ViewMonth:
		return "last 30 days"
	default:
		return "all time"
	}
}
