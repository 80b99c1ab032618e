package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/catalog"
	dbutil "github.com/tlanglois/sillon/internal/db"
	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/store"
)

// reconcileBatchSize bounds the number of tracks committed per
// transaction during a full pass, so an interrupted pass leaves every
// committed batch correctly reconciled.
const reconcileBatchSize = 50

// Report summarizes one reconciliation pass.
type Report struct {
	TracksProcessed int
	FactsCreated    int
}

// Reconciler folds system play-counter deltas into the play-fact log.
//
// A brand-new track is recorded with its baseline equal to the current
// counter and zero facts: plays that predate tracking have no known
// timestamps and are never backfilled. For a known track the delta
// against the last accounted counter value is materialized as that many
// counter-sourced facts with timestamps spread uniformly across the
// unaccounted window, and the accounted value advances. A counter that
// went backwards (external reset) produces no facts and is simply
// adopted as the new accounted value.
type Reconciler struct {
	store   *store.Manager
	catalog catalog.Catalog
	rng     *rand.Rand
}

// NewReconciler creates a reconciler over the given store and catalog.
func NewReconciler(st *store.Manager, cat catalog.Catalog) *Reconciler {
	return &Reconciler{
		store:   st,
		catalog: cat,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ReconcileAll reconciles every catalog track, committing in batches.
// On a mid-pass failure the returned report covers the committed batches;
// unprocessed tracks are untouched and the pass is safe to re-run.
func (r *Reconciler) ReconcileAll(ctx context.Context, now time.Time) (Report, error) {
	var report Report

	entries, err := r.catalog.Enumerate(ctx)
	if err != nil {
		return report, err
	}

	known, err := r.knownTracksByURI()
	if err != nil {
		return report, err
	}

	for start := 0; start < len(entries); start += reconcileBatchSize {
		end := start + reconcileBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		err := dbutil.WithTxContext(ctx, r.store.DB(), func(tx *sql.Tx) error {
			for _, entry := range batch {
				created, err := r.reconcileEntryTx(tx, entry, known[entry.URI], now)
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", entry.URI, err)
				}
				report.FactsCreated += created
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		report.TracksProcessed += len(batch)
	}

	logging.L().Info("full reconciliation complete",
		zap.Int("tracks", report.TracksProcessed),
		zap.Int("facts_created", report.FactsCreated))
	return report, nil
}

// ReconcileOne reconciles a single track by catalog entry; used for the
// cheap foreground path. Returns the number of facts created.
func (r *Reconciler) ReconcileOne(ctx context.Context, entry catalog.Entry, now time.Time) (int, error) {
	count, err := r.catalog.PlayCount(ctx, entry.URI)
	if err != nil {
		return 0, err
	}
	entry.PlayCount = count

	track, err := r.store.GetTrackByURI(entry.URI)
	if err != nil {
		return 0, err
	}

	var created int
	err = dbutil.WithTxContext(ctx, r.store.DB(), func(tx *sql.Tx) error {
		var err error
		created, err = r.reconcileEntryTx(tx, entry, track, now)
		return err
	})
	return created, err
}

func (r *Reconciler) knownTracksByURI() (map[string]*store.Track, error) {
	tracks, err := r.store.ListTracks()
	if err != nil {
		return nil, err
	}
	known := make(map[string]*store.Track, len(tracks))
	for i := range tracks {
		known[tracks[i].URI] = &tracks[i]
	}
	return known, nil
}

// reconcileEntryTx applies the delta logic for one catalog entry within
// tx. track is nil when the entry has never been observed.
func (r *Reconciler) reconcileEntryTx(tx *sql.Tx, entry catalog.Entry, track *store.Track, now time.Time) (int, error) {
	if track == nil {
		_, err := store.CreateTrackTx(tx, &store.Track{
			URI:              entry.URI,
			Title:            entry.Title,
			Artist:           entry.Artist,
			Album:            entry.Album,
			DurationSeconds:  entry.DurationSeconds,
			BaselineCount:    entry.PlayCount,
			LastCounter:      entry.PlayCount,
			LastReconciledAt: now,
			CreatedAt:        now,
		})
		return 0, err
	}

	if metadataChanged(track, entry) {
		err := store.UpdateTrackMetadataTx(tx, track.ID,
			entry.Title, entry.Artist, entry.Album, entry.DurationSeconds)
		if err != nil {
			return 0, err
		}
	}

	delta := entry.PlayCount - track.LastCounter
	if delta == 0 {
		return 0, nil
	}
	if delta < 0 {
		// External counter reset: adopt the lower value, create nothing.
		return 0, store.AdvanceCounterTx(tx, track.ID, entry.PlayCount, now)
	}

	for i := int64(0); i < delta; i++ {
		fact := &store.PlayFact{
			TrackID:  track.ID,
			PlayedAt: r.timestampWithin(track.LastReconciledAt, now),
			Source:   store.SourceCounter,
		}
		if err := store.InsertPlayFactTx(tx, fact); err != nil {
			return 0, err
		}
	}
	if err := store.AdvanceCounterTx(tx, track.ID, entry.PlayCount, now); err != nil {
		return 0, err
	}

	// Keep the in-memory view consistent for idempotent re-runs within
	// the same pass.
	track.LastCounter = entry.PlayCount
	track.LastReconciledAt = now
	return int(delta), nil
}

// timestampWithin picks a pseudo-random second in the half-open window
// (after, upTo], uniformly distributed. A degenerate window yields upTo.
func (r *Reconciler) timestampWithin(after, upTo time.Time) time.Time {
	window := upTo.Unix() - after.Unix()
	if window <= 0 {
		return upTo
	}
	return time.Unix(after.Unix()+1+r.rng.Int63n(window), 0)
}

func metadataChanged(track *store.Track, entry catalog.Entry) bool {
	return track.Title != entry.Title ||
		track.Artist != entry.Artist ||
		track.Album != entry.Album ||
		track.DurationSeconds != entry.DurationSeconds
}
