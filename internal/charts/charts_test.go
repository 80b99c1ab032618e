package charts

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	dbutil "github.com/tlanglois/sillon/internal/db"
	"github.com/tlanglois/sillon/internal/store"
)

func newTestStore(t *testing.T) *store.Manager {
	t.Helper()
	m, err := store.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func createTrack(t *testing.T, st *store.Manager, uri string, baseline int64) *store.Track {
	t.Helper()
	now := time.Now()
	track := &store.Track{
		URI:              uri,
		Title:            uri,
		Artist:           "Artist",
		Album:            "Album",
		BaselineCount:    baseline,
		LastCounter:      baseline,
		LastReconciledAt: now,
		CreatedAt:        now,
	}
	err := dbutil.WithTx(st.DB(), func(tx *sql.Tx) error {
		id, err := store.CreateTrackTx(tx, track)
		track.ID = id
		return err
	})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	return track
}

func addFacts(t *testing.T, st *store.Manager, trackID int64, at time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		fact := &store.PlayFact{TrackID: trackID, PlayedAt: at, Source: store.SourceLive}
		if err := st.InsertPlayFact(fact); err != nil {
			t.Fatalf("insert fact: %v", err)
		}
	}
}

func TestTotalPlayCount_IncludesBaseline(t *testing.T) {
	st := newTestStore(t)
	a := NewAggregator(st)

	track := createTrack(t, st, "a.flac", 5)
	addFacts(t, st, track.ID, time.Now(), 3)

	total, err := a.TotalPlayCount(track)
	if err != nil {
		t.Fatalf("TotalPlayCount failed: %v", err)
	}
	if total != 8 {
		t.Errorf("TotalPlayCount = %d, want 8", total)
	}
}

func TestPeriodPlayCount_ExcludesBaselineAndOldFacts(t *testing.T) {
	st := newTestStore(t)
	a := NewAggregator(st)

	track := createTrack(t, st, "a.flac", 50)
	now := time.Now().Truncate(time.Second)
	addFacts(t, st, track.ID, now.Add(-10*24*time.Hour), 4) // outside week
	addFacts(t, st, track.ID, now.Add(-time.Hour), 2)       // inside week

	count, err := a.PeriodPlayCount(track, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("PeriodPlayCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("PeriodPlayCount = %d, want 2 (baseline and old facts excluded)", count)
	}
}

func TestRanked_OrderAndTies(t *testing.T) {
	st := newTestStore(t)
	a := NewAggregator(st)
	now := time.Now()

	ta := createTrack(t, st, "a.flac", 3)
	tb := createTrack(t, st, "b.flac", 3)
	tc := createTrack(t, st, "c.flac", 10)
	createTrack(t, st, "d.flac", 0) // zero plays: excluded

	entries, _, err := a.Ranked(ViewAllTime, now)
	if err != nil {
		t.Fatalf("Ranked failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Track.ID != tc.ID || entries[0].Rank != 1 {
		t.Errorf("rank 1 = %s, want c.flac", entries[0].Track.URI)
	}
	// Tie between a and b breaks by catalog (URI) order.
	if entries[1].Track.ID != ta.ID || entries[2].Track.ID != tb.ID {
		t.Errorf("tie order = %s, %s; want a.flac, b.flac",
			entries[1].Track.URI, entries[2].Track.URI)
	}
}

func TestRanked_Movement(t *testing.T) {
	st := newTestStore(t)
	a := NewAggregator(st)
	now := time.Now()

	ta := createTrack(t, st, "a.flac", 0)
	tb := createTrack(t, st, "b.flac", 0)
	tc := createTrack(t, st, "c.flac", 0)

	// First computation: a=5, b=4, c=3 -> a #1, b #2, c #3.
	addFacts(t, st, ta.ID, now, 5)
	addFacts(t, st, tb.ID, now, 4)
	addFacts(t, st, tc.ID, now, 3)

	entries, changes, err := a.Ranked(ViewAllTime, now)
	if err != nil {
		t.Fatalf("first Ranked failed: %v", err)
	}
	for _, e := range entries {
		if e.Movement.Kind != MovementNew {
			t.Errorf("first computation: %s movement = %v, want New", e.Track.URI, e.Movement.Kind)
		}
	}
	if len(changes) != 3 {
		t.Errorf("len(changes) = %d, want 3 on first computation", len(changes))
	}

	// c surges: c=9, a=5, b=4 -> c #1 (up 2), a #2 (down 1), b #3 (down 1).
	addFacts(t, st, tc.ID, now, 6)

	entries, changes, err = a.Ranked(ViewAllTime, now)
	if err != nil {
		t.Fatalf("second Ranked failed: %v", err)
	}

	if entries[0].Track.ID != tc.ID {
		t.Fatalf("rank 1 = %s, want c.flac", entries[0].Track.URI)
	}
	if entries[0].Movement.Kind != MovementUp || entries[0].Movement.Delta != 2 {
		t.Errorf("c movement = %+v, want Up(2)", entries[0].Movement)
	}
	if entries[1].Movement.Kind != MovementDown || entries[1].Movement.Delta != 1 {
		t.Errorf("a movement = %+v, want Down(1)", entries[1].Movement)
	}

	// A new track entering the chart reports New.
	td := createTrack(t, st, "d.flac", 0)
	addFacts(t, st, td.ID, now, 1)
	entries, _, err = a.Ranked(ViewAllTime, now)
	if err != nil {
		t.Fatalf("third Ranked failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Track.ID != td.ID || last.Movement.Kind != MovementNew {
		t.Errorf("d movement = %+v, want New", last.Movement)
	}

	// Stable ranks report Unchanged and no change events.
	entries, changes, err = a.Ranked(ViewAllTime, now)
	if err != nil {
		t.Fatalf("fourth Ranked failed: %v", err)
	}
	for _, e := range entries {
		if e.Movement.Kind != MovementUnchanged {
			t.Errorf("%s movement = %v, want Unchanged", e.Track.URI, e.Movement.Kind)
		}
	}
	if len(changes) != 0 {
		t.Errorf("len(changes) = %d, want 0 for stable ranks", len(changes))
	}
}

func TestRanked_PeriodViewExcludesBaselineOnlyTracks(t *testing.T) {
	st := newTestStore(t)
	a := NewAggregator(st)
	now := time.Now().Truncate(time.Second)

	createTrack(t, st, "old.flac", 100) // baseline only
	tb := createTrack(t, st, "new.flac", 0)
	addFacts(t, st, tb.ID, now.Add(-time.Hour), 2)

	entries, _, err := a.Ranked(ViewWeek, now)
	if err != nil {
		t.Fatalf("Ranked failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (baseline-only track excluded)", len(entries))
	}
	if entries[0].Track.ID != tb.ID || entries[0].Plays != 2 {
		t.Errorf("entry = %s plays %d, want new.flac plays 2", entries[0].Track.URI, entries[0].Plays)
	}
}
