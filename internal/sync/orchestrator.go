package sync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/metrics"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/notify"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/tmdb"
	"github.com/voyagen/streamvault/internal/upstream"
	"github.com/voyagen/streamvault/internal/xtream"
)

// DetailMode selects what happens with series detail after a successful sync.
type DetailMode string

const (
	DetailSkip      DetailMode = "skip"
	DetailImmediate DetailMode = "immediate"
	DetailEnqueue   DetailMode = "enqueue"
)

// Options are per-run sync options.
type Options struct {
	DetailMode      DetailMode
	DetailBatchSize int // enqueue mode; zero picks the queue default
}

// Result is the success payload of one sync run.
type Result struct {
	Live   int `json:"live"`
	Movies int `json:"movies"`
	Series int `json:"series"`

	Detail       *DetailResult `json:"detail,omitempty"`
	JobsEnqueued int           `json:"jobs_enqueued,omitempty"`

	FavoritesSwept int64 `json:"favorites_swept"`
	HistorySwept   int64 `json:"history_swept"`
}

// Config wires an Orchestrator.
type Config struct {
	Store store.Store
	Log   *logrus.Logger
	// ClientFactory builds the upstream client for one provider account.
	ClientFactory func(*models.Provider) CatalogClient
	Sink          notify.Sink
	Locker        Locker
	Jobs          JobQueue
	TMDB          *tmdb.Client

	// SyncTimeout bounds the live/movie/series three-way join.
	SyncTimeout time.Duration
	// DetailConcurrency and DetailTimeout tune the immediate detail pool.
	DetailConcurrency int
	DetailTimeout     time.Duration
}

// Orchestrator runs the full sync state machine for providers:
// idle → syncing → {completed, failed}.
type Orchestrator struct {
	cfg Config
}

const lockTTL = 15 * time.Minute

// New creates an Orchestrator, applying defaults for unset tunables.
func New(cfg Config) *Orchestrator {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Sink == nil {
		cfg.Sink = &notify.LogSink{Log: cfg.Log}
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Jobs == nil {
		cfg.Jobs = NoJobs{}
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 10 * time.Minute
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 10
	}
	if cfg.DetailTimeout <= 0 {
		cfg.DetailTimeout = time.Minute
	}
	if cfg.ClientFactory == nil {
		cfg.ClientFactory = func(p *models.Provider) CatalogClient {
			return xtream.New(p.BaseURL, p.Username, p.Password)
		}
	}
	return &Orchestrator{cfg: cfg}
}

type stageResult struct {
	kind  string
	count int
	err   error
}

// Run executes one full sync for the provider. Only one run per provider is
// admitted at a time; a second caller gets upstream.ErrSyncRunning. On any
// stage failure the provider is marked failed and the first error returned;
// stages that already committed keep their rows (upserts are idempotent).
func (o *Orchestrator) Run(ctx context.Context, providerID int64, opts Options) (*Result, error) {
	p, err := o.cfg.Store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	lease, err := o.cfg.Locker.TryLock(ctx, cache.SyncLockKey(providerID), lockTTL)
	if err != nil {
		return nil, err
	}
	defer lease.Unlock()

	// The immediate detail stage has no overall bound, so the run can outlast
	// the lock TTL. Keep the lease alive until Run returns.
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go o.keepLeaseAlive(refreshCtx, lease, lockTTL/3)

	log := o.cfg.Log.WithField("provider_id", providerID)
	o.setStatus(ctx, providerID, models.SyncStatusSyncing, nil)

	client := o.cfg.ClientFactory(p)

	// Categories first: the content stages resolve their associations
	// against this mapping.
	catMaps, err := reconcileCategories(ctx, o.cfg.Store, providerID, client)
	if err != nil {
		log.WithError(err).Error("category reconciliation failed")
		return nil, o.fail(ctx, providerID, err)
	}

	// Live, movies, and series are independent units of work; fan out and
	// join with an overall bound. The units run on the parent context: a
	// join timeout reports failure without yanking work mid-statement.
	results := make(chan stageResult, 3)
	go o.runStage(ctx, results, liveSpec(o.cfg.Store, providerID, client), catMaps)
	go o.runStage(ctx, results, movieSpec(o.cfg.Store, providerID, client), catMaps)
	go o.runStage(ctx, results, seriesSpec(o.cfg.Store, providerID, client), catMaps)

	timer := time.NewTimer(o.cfg.SyncTimeout)
	defer timer.Stop()

	counts := make(map[string]int, 3)
	var firstErr error
collect:
	for i := 0; i < 3; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				log.WithError(r.err).WithField("kind", r.kind).Error("stage failed")
				if firstErr == nil {
					firstErr = r.err
				}
				continue
			}
			counts[r.kind] = r.count
		case <-timer.C:
			if firstErr == nil {
				firstErr = upstream.ErrTimeout
			}
			break collect
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break collect
		}
	}
	if firstErr != nil {
		return nil, o.fail(ctx, providerID, firstErr)
	}

	res := &Result{
		Live:   counts[models.ContentTypeLive],
		Movies: counts[models.ContentTypeMovie],
		Series: counts[models.ContentTypeSeries],
	}

	switch opts.DetailMode {
	case DetailImmediate:
		detail := o.runDetails(ctx, providerID, client)
		res.Detail = &detail
	case DetailEnqueue:
		jobs, err := o.cfg.Jobs.Enqueue(ctx, providerID, opts.DetailBatchSize)
		if err != nil {
			log.WithError(err).Error("detail enqueue failed")
			return nil, o.fail(ctx, providerID, err)
		}
		res.JobsEnqueued = jobs
	}

	// Content that vanished upstream was just pruned; drop user references
	// that now point at nothing.
	favs, hist, err := o.cfg.Store.SweepOrphanRefs(ctx)
	if err != nil {
		log.WithError(err).Error("orphan sweep failed")
		return nil, o.fail(ctx, providerID, err)
	}
	res.FavoritesSwept, res.HistorySwept = favs, hist

	for kind, count := range counts {
		if err := o.cfg.Store.SetProviderKindSynced(ctx, providerID, kind, count); err != nil {
			return nil, o.fail(ctx, providerID, err)
		}
	}
	o.setStatus(ctx, providerID, models.SyncStatusCompleted, &notify.Counts{
		Live: res.Live, Movies: res.Movies, Series: res.Series,
	})
	metrics.SyncRuns.WithLabelValues(models.SyncStatusCompleted).Inc()
	log.WithFields(logrus.Fields{
		"live": res.Live, "movies": res.Movies, "series": res.Series,
	}).Info("sync completed")
	return res, nil
}

func (o *Orchestrator) runStage(ctx context.Context, out chan<- stageResult, spec contentSpec, maps categoryMaps) {
	count, err := spec.run(ctx, maps.forKind(spec.kind()))
	out <- stageResult{kind: spec.kind(), count: count, err: err}
}

// keepLeaseAlive refreshes the sync lock at the given interval until ctx is
// cancelled. A failed refresh is logged; the run itself keeps going, since
// aborting mid-reconcile would lose more than a briefly unguarded lock.
func (o *Orchestrator) keepLeaseAlive(ctx context.Context, lease Lease, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := lease.Refresh(ctx); err != nil {
				o.cfg.Log.WithError(err).Warn("sync lock refresh failed")
			}
		}
	}
}

// fail marks the provider failed, emits the event, and returns err.
func (o *Orchestrator) fail(ctx context.Context, providerID int64, err error) error {
	o.setStatus(ctx, providerID, models.SyncStatusFailed, nil)
	metrics.SyncRuns.WithLabelValues(models.SyncStatusFailed).Inc()
	return err
}

func (o *Orchestrator) setStatus(ctx context.Context, providerID int64, status string, counts *notify.Counts) {
	if err := o.cfg.Store.SetProviderSyncStatus(ctx, providerID, status); err != nil {
		o.cfg.Log.WithError(err).WithField("provider_id", providerID).Error("status update failed")
	}
	ev := notify.Event{ProviderID: providerID, Status: status, Counts: counts}
	if err := o.cfg.Sink.Publish(ctx, ev); err != nil {
		o.cfg.Log.WithError(err).Warn("status event publish failed")
	}
}

// contentSpec erases the kindSpec element type so the three stages can share
// one fan-out path.
type contentSpec interface {
	kind() string
	run(ctx context.Context, categoryIDs map[string]int64) (int, error)
}

type boundSpec[E any] struct {
	spec       kindSpec[E]
	st         store.Store
	providerID int64
}

func (b boundSpec[E]) kind() string { return b.spec.kind }

func (b boundSpec[E]) run(ctx context.Context, categoryIDs map[string]int64) (int, error) {
	return reconcileKind(ctx, b.st, b.providerID, categoryIDs, b.spec)
}

func liveSpec(st store.Store, providerID int64, client CatalogClient) contentSpec {
	return boundSpec[xtream.LiveStreamEntry]{
		st:         st,
		providerID: providerID,
		spec: kindSpec[xtream.LiveStreamEntry]{
			kind: models.ContentTypeLive,
			fetch: func(ctx context.Context) ([]xtream.LiveStreamEntry, error) {
				return client.GetLiveStreams(ctx, "")
			},
			externalID: func(e xtream.LiveStreamEntry) string { return liveFromEntry(providerID, e).ExternalID },
			categories: func(e xtream.LiveStreamEntry) []string { return entryCategoryIDs(e.CategoryID, e.CategoryIDs) },
			upsert: func(ctx context.Context, batch []xtream.LiveStreamEntry) ([]store.UpsertedRow, error) {
				chs := make([]models.LiveChannel, len(batch))
				for i, e := range batch {
					chs[i] = liveFromEntry(providerID, e)
				}
				return st.UpsertLiveChannels(ctx, chs)
			},
		},
	}
}

func movieSpec(st store.Store, providerID int64, client CatalogClient) contentSpec {
	return boundSpec[xtream.VODStreamEntry]{
		st:         st,
		providerID: providerID,
		spec: kindSpec[xtream.VODStreamEntry]{
			kind: models.ContentTypeMovie,
			fetch: func(ctx context.Context) ([]xtream.VODStreamEntry, error) {
				return client.GetVODStreams(ctx, "")
			},
			externalID: func(e xtream.VODStreamEntry) string { return movieFromEntry(providerID, e).ExternalID },
			categories: func(e xtream.VODStreamEntry) []string { return entryCategoryIDs(e.CategoryID, e.CategoryIDs) },
			upsert: func(ctx context.Context, batch []xtream.VODStreamEntry) ([]store.UpsertedRow, error) {
				movies := make([]models.Movie, len(batch))
				for i, e := range batch {
					movies[i] = movieFromEntry(providerID, e)
				}
				return st.UpsertMovies(ctx, movies)
			},
		},
	}
}

func seriesSpec(st store.Store, providerID int64, client CatalogClient) contentSpec {
	return boundSpec[xtream.SeriesEntry]{
		st:         st,
		providerID: providerID,
		spec: kindSpec[xtream.SeriesEntry]{
			kind: models.ContentTypeSeries,
			fetch: func(ctx context.Context) ([]xtream.SeriesEntry, error) {
				return client.GetSeries(ctx, "")
			},
			externalID: func(e xtream.SeriesEntry) string { return seriesFromEntry(providerID, e).ExternalID },
			categories: func(e xtream.SeriesEntry) []string { return entryCategoryIDs(e.CategoryID, e.CategoryIDs) },
			upsert: func(ctx context.Context, batch []xtream.SeriesEntry) ([]store.UpsertedRow, error) {
				series := make([]models.Series, len(batch))
				for i, e := range batch {
					series[i] = seriesFromEntry(providerID, e)
				}
				return st.UpsertSeries(ctx, series)
			},
		},
	}
}
