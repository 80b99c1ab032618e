package tracker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/catalog"
	"github.com/tlanglois/sillon/internal/charts"
	dbutil "github.com/tlanglois/sillon/internal/db"
	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/notify"
	"github.com/tlanglois/sillon/internal/scrobble"
	"github.com/tlanglois/sillon/internal/store"
)

// fullSyncCheckInterval is how often the daemon loop re-evaluates the
// full-sync schedule while idle.
const fullSyncCheckInterval = time.Minute

// EngineOptions configures an Engine. Store, Catalog and Scheduler are
// required; the rest degrade gracefully when absent.
type EngineOptions struct {
	Store     *store.Manager
	Catalog   catalog.Catalog
	Scheduler *Scheduler

	// Notifier delivers rank-change notifications; ignored unless
	// NotifyRankChanges is set.
	Notifier          notify.Notifier
	NotifyRankChanges bool

	// Scrobbler submits completed listens to Last.fm. Nil disables
	// scrobbling.
	Scrobbler scrobble.Submitter
}

// Engine is the daemon core: it consumes playback events from a
// sampler, drives the live session, runs scheduled reconciliation
// passes and refreshes the chart rankings.
//
// A single mutex serializes session finalization against
// reconciliation, so a live play fact and a counter reconciliation of
// the same track can never interleave.
type Engine struct {
	store      *store.Manager
	catalog    catalog.Catalog
	scheduler  *Scheduler
	reconciler *Reconciler
	session    *Session
	charts     *charts.Aggregator

	notifier    notify.Notifier
	notifyRanks bool
	scrobbler   scrobble.Submitter
	queue       *scrobble.Queue

	mu sync.Mutex
}

// NewEngine wires an engine from its options.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		store:       opts.Store,
		catalog:     opts.Catalog,
		scheduler:   opts.Scheduler,
		reconciler:  NewReconciler(opts.Store, opts.Catalog),
		charts:      charts.NewAggregator(opts.Store),
		notifier:    opts.Notifier,
		notifyRanks: opts.NotifyRankChanges && opts.Notifier != nil,
		scrobbler:   opts.Scrobbler,
	}
	if opts.Scrobbler != nil {
		e.queue = scrobble.NewQueue(opts.Store, opts.Scrobbler)
	}
	e.session = NewSession(e.recordLiveFact)
	return e
}

// Run executes the daemon loop until ctx is canceled. It performs the
// startup sync decision, then multiplexes sampler events with the
// periodic full-sync check.
//
// Catalog unavailability is logged and retried on the next scheduled
// check; a permission failure is fatal and returned to the caller, as
// retrying cannot help until access is re-granted.
func (e *Engine) Run(ctx context.Context) error {
	// Stops the sampler goroutine when Run exits on a fatal error.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := e.maybeFullSync(ctx, time.Now()); err != nil {
		if errors.Is(err, catalog.ErrPermissionDenied) {
			return err
		}
		logging.L().Warn("startup sync failed", zap.Error(err))
	}

	sampler := catalog.NewSampler(e.catalog)
	go sampler.Run(ctx)

	checkTimer := time.NewTicker(fullSyncCheckInterval)
	defer checkTimer.Stop()

	for {
		select {
		case event, ok := <-sampler.Events():
			if !ok {
				e.mu.Lock()
				e.session.Finalize(time.Now())
				e.mu.Unlock()
				return ctx.Err()
			}
			if err := e.handleEvent(ctx, event); err != nil {
				return err
			}

		case <-checkTimer.C:
			if err := e.maybeFullSync(ctx, time.Now()); err != nil {
				if errors.Is(err, catalog.ErrPermissionDenied) {
					return err
				}
				logging.L().Warn("scheduled sync failed", zap.Error(err))
			}
		}
	}
}

// handleEvent dispatches one sampler event. A non-nil error means the
// engine cannot continue (catalog access denied).
func (e *Engine) handleEvent(ctx context.Context, event catalog.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch event.Kind {
	case catalog.TrackChanged:
		e.session.HandleTrackChanged(event.Now, event.At)
		return e.onTrackStarted(ctx, event.Now)
	case catalog.PlaybackStarted:
		e.session.HandleStarted(event.Now, event.At)
		e.updateNowPlaying(event.Now)
	case catalog.PlaybackPaused:
		e.session.HandlePaused(event.At)
	case catalog.PlaybackStopped:
		e.session.HandleStopped(event.At)
	case catalog.Tick:
		e.session.HandleTick(event.At)
	}
	return nil
}

// onTrackStarted runs the cheap foreground path for a freshly started
// track: a single-track counter check plus the now-playing submission.
func (e *Engine) onTrackStarted(ctx context.Context, now *catalog.NowPlaying) error {
	if now == nil {
		return nil
	}
	created, err := e.reconciler.ReconcileOne(ctx, now.Entry, time.Now())
	switch {
	case errors.Is(err, catalog.ErrPermissionDenied):
		return err
	case err != nil:
		logging.L().Warn("single-track reconcile failed",
			zap.String("uri", now.Entry.URI), zap.Error(err))
	case created > 0:
		e.refreshCharts()
	}
	e.updateNowPlaying(now)
	return nil
}

func (e *Engine) updateNowPlaying(now *catalog.NowPlaying) {
	if e.scrobbler == nil || now == nil || now.State != catalog.StatePlaying {
		return
	}
	err := e.scrobbler.UpdateNowPlaying(scrobble.Track{
		Artist:          now.Entry.Artist,
		Title:           now.Entry.Title,
		Album:           now.Entry.Album,
		DurationSeconds: int(now.Entry.DurationSeconds),
	})
	if err != nil {
		logging.L().Debug("now playing update failed", zap.Error(err))
	}
}

// maybeFullSync runs a full reconciliation pass when the schedule says
// it is due. Holding the mutex for the whole pass keeps the live
// session quiescent while counters are being folded in.
func (e *Engine) maybeFullSync(ctx context.Context, now time.Time) error {
	state, err := e.store.GetEngineState()
	if err != nil {
		return err
	}
	if !e.scheduler.ShouldRunFullSync(state.LastFullSyncAt, now) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.fullSyncLocked(ctx, now)
	return err
}

// FullSync forces a full reconciliation pass regardless of schedule.
func (e *Engine) FullSync(ctx context.Context, now time.Time) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullSyncLocked(ctx, now)
}

func (e *Engine) fullSyncLocked(ctx context.Context, now time.Time) (Report, error) {
	report, err := e.reconciler.ReconcileAll(ctx, now)
	if err != nil {
		return report, err
	}
	if err := e.store.SaveLastFullSync(now); err != nil {
		return report, err
	}

	if e.queue != nil {
		if n, err := e.queue.RetryPending(); err != nil {
			logging.L().Warn("scrobble retry failed", zap.Error(err))
		} else if n > 0 {
			logging.L().Info("resubmitted queued scrobbles", zap.Int("count", n))
		}
	}

	e.refreshCharts()
	return report, nil
}

// recordLiveFact persists one completed listen. It runs under the
// engine mutex, from inside a session handler.
func (e *Engine) recordLiveFact(entry catalog.Entry, listenedSeconds float64, at time.Time) error {
	track, err := e.store.GetTrackByURI(entry.URI)
	if err != nil {
		return err
	}
	if track == nil {
		track, err = e.createTrackFromEntry(entry, at)
		if err != nil {
			return err
		}
	}

	ratio := 0.0
	if entry.DurationSeconds > 0 {
		ratio = listenedSeconds / entry.DurationSeconds
	}
	err = e.store.InsertPlayFact(&store.PlayFact{
		TrackID:         track.ID,
		PlayedAt:        at,
		Source:          store.SourceLive,
		ListenedSeconds: listenedSeconds,
		DurationSeconds: entry.DurationSeconds,
		CompletionRatio: ratio,
	})
	if err != nil {
		return err
	}

	logging.L().Info("play recorded",
		zap.String("artist", entry.Artist),
		zap.String("title", entry.Title),
		zap.Float64("listened_seconds", listenedSeconds))

	if e.queue != nil {
		e.queue.Submit(scrobble.Track{
			Artist:          entry.Artist,
			Title:           entry.Title,
			Album:           entry.Album,
			DurationSeconds: int(entry.DurationSeconds),
			Timestamp:       at.Add(-time.Duration(listenedSeconds) * time.Second),
		})
	}

	e.refreshCharts()
	return nil
}

// createTrackFromEntry registers a track first seen through live
// playback. The current counter value becomes its baseline, so the
// live fact being recorded is the first play the log accounts for.
//
// A failed counter read aborts the whole emission: a zero baseline
// would make the next reconciliation materialize the track's entire
// pre-tracking history as facts. Dropping this one live fact
// under-counts at most one play.
func (e *Engine) createTrackFromEntry(entry catalog.Entry, now time.Time) (*store.Track, error) {
	counter, err := e.catalog.PlayCount(context.Background(), entry.URI)
	if err != nil {
		return nil, err
	}

	track := &store.Track{
		URI:              entry.URI,
		Title:            entry.Title,
		Artist:           entry.Artist,
		Album:            entry.Album,
		DurationSeconds:  entry.DurationSeconds,
		BaselineCount:    counter,
		LastCounter:      counter,
		LastReconciledAt: now,
		CreatedAt:        now,
	}
	err = dbutil.WithTx(e.store.DB(), func(tx *sql.Tx) error {
		id, err := store.CreateTrackTx(tx, track)
		track.ID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// refreshCharts recomputes every chart view, persisting the new ranks
// and notifying on movement when enabled.
func (e *Engine) refreshCharts() {
	now := time.Now()
	for _, view := range []charts.View{charts.ViewAllTime, charts.ViewWeek, charts.ViewMonth} {
		_, chartChanges, err := e.charts.Ranked(view, now)
		if err != nil {
			logging.L().Warn("chart refresh failed",
				zap.String("view", string(view)), zap.Error(err))
			continue
		}
		if !e.notifyRanks {
			continue
		}
		if n, ok := notify.FormatRankChanges(view, chartChanges); ok {
			if err := e.notifier.Notify(n); err != nil {
				logging.L().Debug("rank notification failed", zap.Error(err))
			}
		}
	}
}
