package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tlanglois/sillon/internal/catalog"
	"github.com/tlanglois/sillon/internal/store"
)

type fakeCatalog struct {
	entries []catalog.Entry
	now     *catalog.NowPlaying
	err     error

	// playCountErr fails only the counter reads, simulating a sticker
	// database outage while the rest of the server responds.
	playCountErr error
}

func (f *fakeCatalog) Enumerate(_ context.Context) ([]catalog.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeCatalog) Current(_ context.Context) (*catalog.NowPlaying, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.now == nil {
		return &catalog.NowPlaying{State: catalog.StateStopped}, nil
	}
	return f.now, nil
}

func (f *fakeCatalog) PlayCount(_ context.Context, uri string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.playCountErr != nil {
		return 0, f.playCountErr
	}
	for _, e := range f.entries {
		if e.URI == uri {
			return e.PlayCount, nil
		}
	}
	return 0, nil
}

func newTestStore(t *testing.T) *store.Manager {
	t.Helper()
	m, err := store.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func totalPlayCount(t *testing.T, st *store.Manager, uri string) int64 {
	t.Helper()
	track, err := st.GetTrackByURI(uri)
	if err != nil {
		t.Fatalf("GetTrackByURI failed: %v", err)
	}
	if track == nil {
		t.Fatalf("track %s not found", uri)
	}
	facts, err := st.CountPlayFacts(track.ID)
	if err != nil {
		t.Fatalf("CountPlayFacts failed: %v", err)
	}
	return track.BaselineCount + facts
}

func TestReconcileAll_NoHistoricalFabrication(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "A", Artist: "X", DurationSeconds: 200, PlayCount: 7},
	}}
	r := NewReconciler(st, cat)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report, err := r.ReconcileAll(context.Background(), now)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.TracksProcessed != 1 || report.FactsCreated != 0 {
		t.Errorf("report = %+v, want 1 track, 0 facts", report)
	}

	track, err := st.GetTrackByURI("a.flac")
	if err != nil || track == nil {
		t.Fatalf("track not created: %v", err)
	}
	if track.BaselineCount != 7 {
		t.Errorf("BaselineCount = %d, want 7", track.BaselineCount)
	}
	if got := totalPlayCount(t, st, "a.flac"); got != 7 {
		t.Errorf("totalPlayCount = %d, want 7", got)
	}
}

func TestReconcileAll_Idempotent(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "A", PlayCount: 5},
		{URI: "b.flac", Title: "B", PlayCount: 2},
	}}
	r := NewReconciler(st, cat)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := r.ReconcileAll(ctx, t0); err != nil {
		t.Fatalf("first ReconcileAll failed: %v", err)
	}

	// Counter grows; reconcile, then reconcile again with no change.
	cat.entries[0].PlayCount = 9
	t1 := t0.Add(time.Hour)
	report, err := r.ReconcileAll(ctx, t1)
	if err != nil {
		t.Fatalf("second ReconcileAll failed: %v", err)
	}
	if report.FactsCreated != 4 {
		t.Errorf("FactsCreated = %d, want 4", report.FactsCreated)
	}

	before := totalPlayCount(t, st, "a.flac")
	report, err = r.ReconcileAll(ctx, t1.Add(time.Minute))
	if err != nil {
		t.Fatalf("third ReconcileAll failed: %v", err)
	}
	if report.FactsCreated != 0 {
		t.Errorf("FactsCreated on immediate re-run = %d, want 0", report.FactsCreated)
	}
	if after := totalPlayCount(t, st, "a.flac"); after != before {
		t.Errorf("totalPlayCount changed on re-run: %d -> %d", before, after)
	}
}

func TestReconcileAll_DeltaDistributionWindow(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "A", PlayCount: 5},
	}}
	r := NewReconciler(st, cat)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	if _, err := r.ReconcileAll(ctx, t0); err != nil {
		t.Fatalf("seed ReconcileAll failed: %v", err)
	}
	if got := totalPlayCount(t, st, "a.flac"); got != 5 {
		t.Fatalf("totalPlayCount after creation = %d, want 5", got)
	}

	cat.entries[0].PlayCount = 8
	t1 := t0.Add(6 * time.Hour)
	report, err := r.ReconcileAll(ctx, t1)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.FactsCreated != 3 {
		t.Fatalf("FactsCreated = %d, want 3", report.FactsCreated)
	}

	track, _ := st.GetTrackByURI("a.flac")
	facts, err := st.PlayFacts(track.ID)
	if err != nil {
		t.Fatalf("PlayFacts failed: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("len(facts) = %d, want 3", len(facts))
	}
	for _, f := range facts {
		if f.Source != store.SourceCounter {
			t.Errorf("fact source = %q, want %q", f.Source, store.SourceCounter)
		}
		if !f.PlayedAt.After(t0) || f.PlayedAt.After(t1) {
			t.Errorf("fact timestamp %v outside (%v, %v]", f.PlayedAt, t0, t1)
		}
	}

	// Baseline stays at creation value; the accounted counter advances;
	// with no live facts the total equals the system counter exactly.
	if track.BaselineCount != 5 {
		t.Errorf("BaselineCount = %d, want 5 (frozen)", track.BaselineCount)
	}
	if track.LastCounter != 8 {
		t.Errorf("LastCounter = %d, want 8", track.LastCounter)
	}
	if got := totalPlayCount(t, st, "a.flac"); got != 8 {
		t.Errorf("totalPlayCount = %d, want 8 (== system counter)", got)
	}
}

func TestReconcileAll_CounterResetTolerated(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "A", PlayCount: 10},
	}}
	r := NewReconciler(st, cat)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	if _, err := r.ReconcileAll(ctx, t0); err != nil {
		t.Fatalf("seed ReconcileAll failed: %v", err)
	}

	cat.entries[0].PlayCount = 2
	report, err := r.ReconcileAll(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("ReconcileAll after reset failed: %v", err)
	}
	if report.FactsCreated != 0 {
		t.Errorf("FactsCreated = %d, want 0 after counter reset", report.FactsCreated)
	}

	track, _ := st.GetTrackByURI("a.flac")
	if track.LastCounter != 2 {
		t.Errorf("LastCounter = %d, want 2 (adopted lower value)", track.LastCounter)
	}

	// The next growth reconciles against the reset value.
	cat.entries[0].PlayCount = 4
	report, err = r.ReconcileAll(ctx, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ReconcileAll after regrowth failed: %v", err)
	}
	if report.FactsCreated != 2 {
		t.Errorf("FactsCreated = %d, want 2", report.FactsCreated)
	}
}

func TestReconcileAll_Batching(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{}
	for i := 0; i < 120; i++ {
		cat.entries = append(cat.entries, catalog.Entry{
			URI:       fmt.Sprintf("dir/track%03d.flac", i),
			Title:     fmt.Sprintf("Track %d", i),
			PlayCount: int64(i % 3),
		})
	}
	r := NewReconciler(st, cat)

	report, err := r.ReconcileAll(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.TracksProcessed != 120 {
		t.Errorf("TracksProcessed = %d, want 120", report.TracksProcessed)
	}
	if report.FactsCreated != 0 {
		t.Errorf("FactsCreated = %d, want 0 on first observation", report.FactsCreated)
	}

	tracks, err := st.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 120 {
		t.Errorf("len(tracks) = %d, want 120", len(tracks))
	}
}

func TestReconcileOne(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "A", PlayCount: 3},
	}}
	r := NewReconciler(st, cat)
	ctx := context.Background()

	// Unknown track: created with baseline, zero facts.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created, err := r.ReconcileOne(ctx, catalog.Entry{URI: "a.flac", Title: "A"}, now)
	if err != nil {
		t.Fatalf("ReconcileOne failed: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0 for first observation", created)
	}
	if got := totalPlayCount(t, st, "a.flac"); got != 3 {
		t.Errorf("totalPlayCount = %d, want 3", got)
	}

	// Counter grew by one in the background.
	cat.entries[0].PlayCount = 4
	created, err = r.ReconcileOne(ctx, catalog.Entry{URI: "a.flac", Title: "A"}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ReconcileOne failed: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	if got := totalPlayCount(t, st, "a.flac"); got != 4 {
		t.Errorf("totalPlayCount = %d, want 4", got)
	}
}

func TestReconcileAll_MetadataRefreshed(t *testing.T) {
	st := newTestStore(t)
	cat := &fakeCatalog{entries: []catalog.Entry{
		{URI: "a.flac", Title: "Untitled", PlayCount: 0},
	}}
	r := NewReconciler(st, cat)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := r.ReconcileAll(ctx, t0); err != nil {
		t.Fatalf("seed ReconcileAll failed: %v", err)
	}

	// Tags fixed on the server.
	cat.entries[0].Title = "Proper Title"
	cat.entries[0].Artist = "Artist"
	cat.entries[0].DurationSeconds = 180
	if _, err := r.ReconcileAll(ctx, t0.Add(time.Hour)); err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}

	track, _ := st.GetTrackByURI("a.flac")
	if track.Title != "Proper Title" || track.Artist != "Artist" || track.DurationSeconds != 180 {
		t.Errorf("metadata not refreshed: %+v", track)
	}
}
