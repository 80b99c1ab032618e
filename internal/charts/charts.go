// Package charts derives ranked play-count views from the play-fact log.
package charts

import (
	"sort"
	"time"

	"github.com/tlanglois/sillon/internal/store"
)

// View identifies a chart, which keeps its own rank history.
type View string

const (
	// ViewAllTime ranks by baseline + all recorded facts.
	ViewAllTime View = "all"
	// ViewWeek ranks by facts of the last 7 days.
	ViewWeek View = "7d"
	// ViewMonth ranks by facts of the last 30 days.
	ViewMonth View = "30d"
)

// Period returns the length of the view's window; zero for all-time.
func (v View) Period() time.Duration {
	switch v {
	case ViewWeek:
		return 7 * 24 * time.Hour
	case ViewMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// MovementKind classifies a rank change against the previous computation.
type MovementKind int

const (
	MovementNew MovementKind = iota
	MovementUnchanged
	MovementUp
	MovementDown
)

// Movement describes how an entry moved since the last ranking.
type Movement struct {
	Kind  MovementKind
	Delta int // positions moved, for Up and Down
}

// Entry is one ranked chart row.
type Entry struct {
	Track    store.Track
	Plays    int64
	Rank     int // 1-based
	Movement Movement
}

// RankChange reports a track whose rank differs from the previous
// computation of the same view. OldRank is 0 for new entries.
type RankChange struct {
	Track   store.Track
	OldRank int
	NewRank int
}

// Aggregator folds the persisted play-fact log into chart views.
type Aggregator struct {
	store *store.Manager
}

// NewAggregator creates an aggregator over the store.
func NewAggregator(st *store.Manager) *Aggregator {
	return &Aggregator{store: st}
}

// TotalPlayCount returns baseline plays plus every recorded fact.
func (a *Aggregator) TotalPlayCount(track *store.Track) (int64, error) {
	facts, err := a.store.CountPlayFacts(track.ID)
	if err != nil {
		return 0, err
	}
	return track.BaselineCount + facts, nil
}

// PeriodPlayCount counts facts with a timestamp at or after since. The
// baseline is excluded: it has no intra-period timestamps.
func (a *Aggregator) PeriodPlayCount(track *store.Track, since time.Time) (int64, error) {
	return a.store.CountPlayFactsSince(track.ID, since)
}

// Ranked computes the chart for a view at the given time, persists the
// new ranks, and returns the entries plus the rank changes versus the
// previous computation.
//
// All-time charts include every track with at least one play; period
// charts include only tracks with period plays. Ties break by catalog
// (URI) order, which is stable across computations.
func (a *Aggregator) Ranked(view View, now time.Time) ([]Entry, []RankChange, error) {
	tracks, err := a.store.ListTracks()
	if err != nil {
		return nil, nil, err
	}

	var since time.Time
	if p := view.Period(); p > 0 {
		since = now.Add(-p)
	}
	counts, err := a.store.FactCounts(since)
	if err != nil {
		return nil, nil, err
	}

	var entries []Entry
	for _, track := range tracks {
		plays := counts[track.ID]
		if since.IsZero() {
			plays += track.BaselineCount
		}
		if plays == 0 {
			continue
		}
		entries = append(entries, Entry{Track: track, Plays: plays})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Plays != entries[j].Plays {
			return entries[i].Plays > entries[j].Plays
		}
		return entries[i].Track.URI < entries[j].Track.URI
	})

	previous, err := a.store.GetRanks(string(view))
	if err != nil {
		return nil, nil, err
	}

	var changes []RankChange
	ranks := make(map[int64]int, len(entries))
	for i := range entries {
		rank := i + 1
		entries[i].Rank = rank
		ranks[entries[i].Track.ID] = rank

		old, seen := previous[entries[i].Track.ID]
		switch {
		case !seen:
			entries[i].Movement = Movement{Kind: MovementNew}
			changes = append(changes, RankChange{Track: entries[i].Track, NewRank: rank})
		case old == rank:
			entries[i].Movement = Movement{Kind: MovementUnchanged}
		case old > rank:
			entries[i].Movement = Movement{Kind: MovementUp, Delta: old - rank}
			changes = append(changes, RankChange{Track: entries[i].Track, OldRank: old, NewRank: rank})
		default:
			entries[i].Movement = Movement{Kind: MovementDown, Delta: rank - old}
			changes = append(changes, RankChange{Track: entries[i].Track, OldRank: old, NewRank: rank})
		}
	}

	if err := a.store.SaveRanks(string(view), ranks); err != nil {
		return nil, nil, err
	}
	return entries, changes, nil
}
