package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/upstream"
	"github.com/voyagen/streamvault/internal/xtream"
)

// --- fakes ---

// fakeStore is an in-memory store.Store. Only the methods the sync engine
// touches are implemented; anything else panics through the embedded nil.
type fakeStore struct {
	store.Store

	mu       stdsync.Mutex
	provider models.Provider
	nextID   int64

	statuses   []string
	kindSynced map[string]int

	categories map[string]map[string]int64 // kind -> external id -> local id
	content    map[string]map[string]int64 // kind -> external id -> local id
	links      map[string]int              // kind -> link count of last rebuild

	seasons  map[int64]map[int]int64 // series id -> season number -> local id
	episodes map[int64]int           // season id -> episode count

	sweeps int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		provider:   models.Provider{ID: 1, Name: "test", BaseURL: "http://panel", Username: "u", Password: "p"},
		kindSynced: make(map[string]int),
		categories: make(map[string]map[string]int64),
		content:    make(map[string]map[string]int64),
		links:      make(map[string]int),
		seasons:    make(map[int64]map[int]int64),
		episodes:   make(map[int64]int),
	}
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) GetProvider(_ context.Context, id int64) (*models.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.provider.ID {
		return nil, upstream.ErrNotFound
	}
	p := f.provider
	return &p, nil
}

func (f *fakeStore) SetProviderSyncStatus(_ context.Context, _ int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) SetProviderKindSynced(_ context.Context, _ int64, kind string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kindSynced[kind] = count
	return nil
}

func (f *fakeStore) UpsertCategories(_ context.Context, _ int64, kind string, cats []models.Category) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.categories[kind] == nil {
		f.categories[kind] = make(map[string]int64)
	}
	out := make(map[string]int64, len(cats))
	for _, c := range cats {
		id, ok := f.categories[kind][c.ExternalID]
		if !ok {
			id = f.id()
			f.categories[kind][c.ExternalID] = id
		}
		out[c.ExternalID] = id
	}
	return out, nil
}

func (f *fakeStore) DeleteCategoriesNotIn(_ context.Context, _ int64, kind string, keep []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	var n int64
	for ext := range f.categories[kind] {
		if !keepSet[ext] {
			delete(f.categories[kind], ext)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) upsertContent(kind string, externals []string) []store.UpsertedRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.content[kind] == nil {
		f.content[kind] = make(map[string]int64)
	}
	rows := make([]store.UpsertedRow, 0, len(externals))
	for _, ext := range externals {
		id, ok := f.content[kind][ext]
		if !ok {
			id = f.id()
			f.content[kind][ext] = id
		}
		rows = append(rows, store.UpsertedRow{ID: id, ExternalID: ext})
	}
	return rows
}

func (f *fakeStore) UpsertLiveChannels(_ context.Context, chs []models.LiveChannel) ([]store.UpsertedRow, error) {
	exts := make([]string, len(chs))
	for i, c := range chs {
		exts[i] = c.ExternalID
	}
	return f.upsertContent(models.ContentTypeLive, exts), nil
}

func (f *fakeStore) UpsertMovies(_ context.Context, movies []models.Movie) ([]store.UpsertedRow, error) {
	exts := make([]string, len(movies))
	for i, m := range movies {
		exts[i] = m.ExternalID
	}
	return f.upsertContent(models.ContentTypeMovie, exts), nil
}

func (f *fakeStore) UpsertSeries(_ context.Context, series []models.Series) ([]store.UpsertedRow, error) {
	exts := make([]string, len(series))
	for i, s := range series {
		exts[i] = s.ExternalID
	}
	return f.upsertContent(models.ContentTypeSeries, exts), nil
}

func (f *fakeStore) ReplaceContentCategories(_ context.Context, kind string, _ []int64, links []store.CategoryLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[kind] = len(links)
	return nil
}

func (f *fakeStore) DeleteContentNotIn(_ context.Context, kind string, _ int64, keep []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	var n int64
	for ext := range f.content[kind] {
		if !keepSet[ext] {
			delete(f.content[kind], ext)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SweepOrphanRefs(context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 0, 0, nil
}

func (f *fakeStore) ListSeries(_ context.Context, _ int64) ([]models.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Series
	for ext, id := range f.content[models.ContentTypeSeries] {
		out = append(out, models.Series{ID: id, ProviderID: f.provider.ID, ExternalID: ext, Name: "show " + ext})
	}
	return out, nil
}

func (f *fakeStore) CountSeries(_ context.Context, _ int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.content[models.ContentTypeSeries]), nil
}

func (f *fakeStore) UpsertSeasons(_ context.Context, seriesID int64, seasons []models.Season) (map[int]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seasons[seriesID] == nil {
		f.seasons[seriesID] = make(map[int]int64)
	}
	out := make(map[int]int64, len(seasons))
	for _, s := range seasons {
		id, ok := f.seasons[seriesID][s.SeasonNumber]
		if !ok {
			id = f.id()
			f.seasons[seriesID][s.SeasonNumber] = id
		}
		out[s.SeasonNumber] = id
	}
	return out, nil
}

func (f *fakeStore) DeleteSeasonsNotIn(_ context.Context, seriesID int64, keep []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keepSet := make(map[int]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	for num := range f.seasons[seriesID] {
		if !keepSet[num] {
			delete(f.seasons[seriesID], num)
		}
	}
	return nil
}

func (f *fakeStore) UpsertEpisodes(_ context.Context, seasonID int64, eps []models.Episode) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodes[seasonID] = len(eps)
	return len(eps), nil
}

func (f *fakeStore) DeleteEpisodesNotIn(context.Context, int64, []int) error { return nil }

func (f *fakeStore) EnrichSeries(context.Context, int64, store.SeriesEnrichment) error { return nil }

func (f *fakeStore) statusLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func (f *fakeStore) contentExternals(kind string) map[string]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.content[kind]))
	for k, v := range f.content[kind] {
		out[k] = v
	}
	return out
}

// fakeClient serves canned listings and records which calls were made.
type fakeClient struct {
	mu    stdsync.Mutex
	calls []string

	liveCats, vodCats, seriesCats []xtream.CategoryEntry
	live                          []xtream.LiveStreamEntry
	vod                           []xtream.VODStreamEntry
	series                        []xtream.SeriesEntry
	seriesInfo                    map[string]*xtream.SeriesInfo

	liveCatsErr error
	vodErr      error
	liveDelay   time.Duration
}

func (c *fakeClient) record(name string) {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
}

func (c *fakeClient) called(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == name {
			return true
		}
	}
	return false
}

func (c *fakeClient) GetLiveCategories(context.Context) ([]xtream.CategoryEntry, error) {
	c.record("live_categories")
	return c.liveCats, c.liveCatsErr
}

func (c *fakeClient) GetVODCategories(context.Context) ([]xtream.CategoryEntry, error) {
	c.record("vod_categories")
	return c.vodCats, nil
}

func (c *fakeClient) GetSeriesCategories(context.Context) ([]xtream.CategoryEntry, error) {
	c.record("series_categories")
	return c.seriesCats, nil
}

func (c *fakeClient) GetLiveStreams(ctx context.Context, _ string) ([]xtream.LiveStreamEntry, error) {
	c.record("live_streams")
	if c.liveDelay > 0 {
		select {
		case <-time.After(c.liveDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.live, nil
}

func (c *fakeClient) GetVODStreams(context.Context, string) ([]xtream.VODStreamEntry, error) {
	c.record("vod_streams")
	return c.vod, c.vodErr
}

func (c *fakeClient) GetSeries(context.Context, string) ([]xtream.SeriesEntry, error) {
	c.record("series")
	return c.series, nil
}

func (c *fakeClient) GetSeriesInfo(_ context.Context, seriesID string) (*xtream.SeriesInfo, error) {
	c.record("series_info:" + seriesID)
	info, ok := c.seriesInfo[seriesID]
	if !ok {
		return nil, &upstream.HTTPError{Status: 404}
	}
	return info, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestOrchestrator(fs *fakeStore, fc *fakeClient) *Orchestrator {
	return New(Config{
		Store:         fs,
		Log:           quietLogger(),
		ClientFactory: func(*models.Provider) CatalogClient { return fc },
		SyncTimeout:   5 * time.Second,
	})
}

func catalogClient() *fakeClient {
	return &fakeClient{
		liveCats:   []xtream.CategoryEntry{{CategoryID: "10", Name: "News"}},
		vodCats:    []xtream.CategoryEntry{{CategoryID: "20", Name: "Action"}},
		seriesCats: []xtream.CategoryEntry{{CategoryID: "30", Name: "Drama"}},
		live: []xtream.LiveStreamEntry{
			{StreamID: 1, Name: "One", CategoryID: "10"},
			{StreamID: 2, Name: "Two", CategoryID: "10"},
		},
		vod: []xtream.VODStreamEntry{
			{StreamID: 100, Name: "Film", CategoryID: "20", Year: "2021"},
		},
		series: []xtream.SeriesEntry{
			{SeriesID: 500, Name: "Show", CategoryID: "30"},
		},
	}
}

// --- tests ---

func TestRunFullSync(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	o := newTestOrchestrator(fs, fc)

	res, err := o.Run(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Live != 2 || res.Movies != 1 || res.Series != 1 {
		t.Fatalf("counts = %+v", res)
	}

	statuses := fs.statusLog()
	if len(statuses) != 2 || statuses[0] != models.SyncStatusSyncing || statuses[1] != models.SyncStatusCompleted {
		t.Fatalf("statuses = %v", statuses)
	}
	if fs.kindSynced[models.ContentTypeLive] != 2 || fs.kindSynced[models.ContentTypeMovie] != 1 || fs.kindSynced[models.ContentTypeSeries] != 1 {
		t.Fatalf("kindSynced = %v", fs.kindSynced)
	}
	if fs.sweeps != 1 {
		t.Fatalf("sweeps = %d, want 1", fs.sweeps)
	}
	if fs.links[models.ContentTypeLive] != 2 {
		t.Fatalf("live category links = %d, want 2", fs.links[models.ContentTypeLive])
	}
}

func TestResyncPreservesLocalIDs(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	o := newTestOrchestrator(fs, fc)

	if _, err := o.Run(context.Background(), 1, Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := fs.contentExternals(models.ContentTypeLive)

	if _, err := o.Run(context.Background(), 1, Options{}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	after := fs.contentExternals(models.ContentTypeLive)

	if len(before) != len(after) {
		t.Fatalf("row count changed: %d -> %d", len(before), len(after))
	}
	for ext, id := range before {
		if after[ext] != id {
			t.Errorf("channel %s id changed %d -> %d", ext, id, after[ext])
		}
	}
}

func TestResyncPrunesVanishedContent(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	o := newTestOrchestrator(fs, fc)

	if _, err := o.Run(context.Background(), 1, Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	keptID := fs.contentExternals(models.ContentTypeLive)["1"]

	// Channel 2 disappears upstream.
	fc.mu.Lock()
	fc.live = fc.live[:1]
	fc.mu.Unlock()

	res, err := o.Run(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Live != 1 {
		t.Fatalf("live count = %d, want 1", res.Live)
	}
	after := fs.contentExternals(models.ContentTypeLive)
	if len(after) != 1 {
		t.Fatalf("rows = %v, want only channel 1", after)
	}
	if after["1"] != keptID {
		t.Fatalf("surviving channel id changed %d -> %d", keptID, after["1"])
	}
}

func TestCategoryFailureStopsContentStages(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	fc.liveCatsErr = &upstream.HTTPError{Status: 500}
	o := newTestOrchestrator(fs, fc)

	_, err := o.Run(context.Background(), 1, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *upstream.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}

	if fc.called("live_streams") || fc.called("vod_streams") || fc.called("series") {
		t.Fatalf("content listings fetched after category failure: %v", fc.calls)
	}
	statuses := fs.statusLog()
	if statuses[len(statuses)-1] != models.SyncStatusFailed {
		t.Fatalf("statuses = %v, want failed last", statuses)
	}
}

func TestStageFailureLetsSiblingsFinish(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	fc.vodErr = &upstream.HTTPError{Status: 502}
	o := newTestOrchestrator(fs, fc)

	_, err := o.Run(context.Background(), 1, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	statuses := fs.statusLog()
	if statuses[len(statuses)-1] != models.SyncStatusFailed {
		t.Fatalf("statuses = %v, want failed last", statuses)
	}

	// The live and series stages committed their rows regardless.
	if got := fs.contentExternals(models.ContentTypeLive); len(got) != 2 {
		t.Errorf("live rows = %v, want 2", got)
	}
	if got := fs.contentExternals(models.ContentTypeSeries); len(got) != 1 {
		t.Errorf("series rows = %v, want 1", got)
	}
	// Counters stay untouched on failure.
	if len(fs.kindSynced) != 0 {
		t.Errorf("kindSynced = %v, want empty", fs.kindSynced)
	}
	if fs.sweeps != 0 {
		t.Errorf("sweeps = %d, want 0", fs.sweeps)
	}
}

func TestJoinTimeout(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	fc.liveDelay = time.Second
	o := New(Config{
		Store:         fs,
		Log:           quietLogger(),
		ClientFactory: func(*models.Provider) CatalogClient { return fc },
		SyncTimeout:   50 * time.Millisecond,
	})

	_, err := o.Run(context.Background(), 1, Options{})
	if !errors.Is(err, upstream.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	statuses := fs.statusLog()
	if statuses[len(statuses)-1] != models.SyncStatusFailed {
		t.Fatalf("statuses = %v, want failed last", statuses)
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	fc.liveDelay = 300 * time.Millisecond
	o := newTestOrchestrator(fs, fc)

	errs := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), 1, Options{})
		errs <- err
	}()
	// Give the first run time to take the lock.
	time.Sleep(50 * time.Millisecond)

	_, err := o.Run(context.Background(), 1, Options{})
	if !errors.Is(err, upstream.ErrSyncRunning) {
		t.Fatalf("second run err = %v, want ErrSyncRunning", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestDetailImmediateReconcilesSeasons(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	fc.seriesInfo = map[string]*xtream.SeriesInfo{
		"500": seriesInfoFixture(),
	}
	o := newTestOrchestrator(fs, fc)

	res, err := o.Run(context.Background(), 1, Options{DetailMode: DetailImmediate})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Detail == nil {
		t.Fatal("expected detail result")
	}
	if res.Detail.SeriesOK != 1 || res.Detail.SeriesFailed != 0 {
		t.Fatalf("detail = %+v", res.Detail)
	}
	if res.Detail.Seasons != 2 || res.Detail.Episodes != 3 {
		t.Fatalf("detail = %+v, want 2 seasons / 3 episodes", res.Detail)
	}

	seriesID := fs.contentExternals(models.ContentTypeSeries)["500"]
	if len(fs.seasons[seriesID]) != 2 {
		t.Fatalf("stored seasons = %v", fs.seasons[seriesID])
	}
}

func TestDetailFailuresDoNotAbortTheRun(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	// No seriesInfo fixture: every detail lookup 404s.
	o := newTestOrchestrator(fs, fc)

	res, err := o.Run(context.Background(), 1, Options{DetailMode: DetailImmediate})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Detail.SeriesFailed != 1 || res.Detail.SeriesOK != 0 {
		t.Fatalf("detail = %+v", res.Detail)
	}
	statuses := fs.statusLog()
	if statuses[len(statuses)-1] != models.SyncStatusCompleted {
		t.Fatalf("statuses = %v, want completed last", statuses)
	}
}

func TestDetailEnqueueWithoutQueueFails(t *testing.T) {
	fs := newFakeStore()
	fc := catalogClient()
	o := newTestOrchestrator(fs, fc)

	_, err := o.Run(context.Background(), 1, Options{DetailMode: DetailEnqueue})
	if !errors.Is(err, upstream.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

// seriesInfoFixture has one declared season plus a second season that only
// shows up through the episode map, the way many panels respond.
func seriesInfoFixture() *xtream.SeriesInfo {
	raw := `{
		"seasons": [{"season_number": 1, "name": "Season 1"}],
		"episodes": {
			"1": [
				{"id": "9001", "episode_num": 1, "season": 1, "title": "s01e01"},
				{"id": "9002", "episode_num": 2, "season": 1, "title": "s01e02"}
			],
			"2": [
				{"id": "9003", "episode_num": 1, "season": 2, "title": "s02e01"}
			]
		}
	}`
	var info xtream.SeriesInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		panic(err)
	}
	return &info
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	lease, err := l.TryLock(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if err := lease.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := l.TryLock(context.Background(), "k", time.Minute); !errors.Is(err, upstream.ErrSyncRunning) {
		t.Fatalf("second TryLock err = %v, want ErrSyncRunning", err)
	}
	lease.Unlock()
	if _, err := l.TryLock(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("TryLock after unlock: %v", err)
	}
}

// countingLease records refreshes so the keepalive loop can be observed.
type countingLease struct {
	refreshes atomic.Int64
}

func (l *countingLease) Refresh(context.Context) error {
	l.refreshes.Add(1)
	return nil
}

func (l *countingLease) Unlock() {}

func TestKeepLeaseAliveRefreshesUntilCancelled(t *testing.T) {
	o := newTestOrchestrator(newFakeStore(), &fakeClient{})
	lease := &countingLease{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		o.keepLeaseAlive(ctx, lease, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for lease.refreshes.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("refreshes = %d, want at least 2", lease.refreshes.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	after := lease.refreshes.Load()
	time.Sleep(20 * time.Millisecond)
	if got := lease.refreshes.Load(); got != after {
		t.Fatalf("refreshes kept growing after cancel: %d -> %d", after, got)
	}
}
