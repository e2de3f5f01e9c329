package store

import (
	"context"
	"time"

	"github.com/voyagen/streamvault/internal/models"
)

// UpsertedRow is the (local id, external id) pair returned by batch upserts.
// Local ids are stable: an upsert of a row that already exists returns its
// existing id, which is what keeps favorites and watch history valid.
type UpsertedRow struct {
	ID         int64
	ExternalID string
}

// CategoryLink associates one content row with one category local id.
type CategoryLink struct {
	ContentID  int64
	CategoryID int64
}

// EPGChannelRef names one live channel that carries guide data: the upstream
// stream id used to fetch its short EPG and the guide channel id it maps to.
type EPGChannelRef struct {
	StreamID     string
	EPGChannelID string
}

// Store defines persistence for providers, catalog entities, EPG programs,
// and the user-reference orphan sweep.
type Store interface {
	// --- providers ---

	ListProviders(ctx context.Context) ([]models.Provider, error)
	// GetProvider returns upstream.ErrNotFound when the id does not exist.
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	CreateProvider(ctx context.Context, p *models.Provider) (int64, error)
	// DeleteProvider cascades to all catalog content of the provider.
	DeleteProvider(ctx context.Context, id int64) error
	SetProviderSyncStatus(ctx context.Context, id int64, status string) error
	// SetProviderKindSynced stamps {kind}_synced_at and {kind}_count after a
	// successful reconciliation of that kind.
	SetProviderKindSynced(ctx context.Context, id int64, kind string, count int) error
	SetProviderEPGSynced(ctx context.Context, id int64) error

	// --- categories ---

	// UpsertCategories upserts one provider+kind category listing and returns
	// the external id → local id mapping for association building.
	UpsertCategories(ctx context.Context, providerID int64, kind string, cats []models.Category) (map[string]int64, error)
	// DeleteCategoriesNotIn prunes categories of the provider+kind whose
	// external id is absent from keep.
	DeleteCategoriesNotIn(ctx context.Context, providerID int64, kind string, keep []string) (int64, error)

	// --- content reconciliation (one batch per call) ---

	UpsertLiveChannels(ctx context.Context, chs []models.LiveChannel) ([]UpsertedRow, error)
	UpsertMovies(ctx context.Context, movies []models.Movie) ([]UpsertedRow, error)
	UpsertSeries(ctx context.Context, series []models.Series) ([]UpsertedRow, error)
	// ReplaceContentCategories deletes all category links of the given content
	// ids and inserts links. kind is one of models.ContentType{Live,Movie,Series}.
	ReplaceContentCategories(ctx context.Context, kind string, contentIDs []int64, links []CategoryLink) error
	// DeleteContentNotIn prunes rows of the provider whose external id is
	// absent from keep, removing their category links first.
	DeleteContentNotIn(ctx context.Context, kind string, providerID int64, keep []string) (int64, error)

	// --- series detail ---

	ListSeries(ctx context.Context, providerID int64) ([]models.Series, error)
	CountSeries(ctx context.Context, providerID int64) (int, error)
	UpsertSeasons(ctx context.Context, seriesID int64, seasons []models.Season) (map[int]int64, error)
	DeleteSeasonsNotIn(ctx context.Context, seriesID int64, keep []int) error
	UpsertEpisodes(ctx context.Context, seasonID int64, eps []models.Episode) (int, error)
	DeleteEpisodesNotIn(ctx context.Context, seasonID int64, keep []int) error
	// EnrichSeries fills the TMDB id and any still-empty metadata fields;
	// present local values are never overwritten.
	EnrichSeries(ctx context.Context, seriesID int64, e SeriesEnrichment) error

	// --- EPG ---

	ListEPGChannelRefs(ctx context.Context, providerID int64) ([]EPGChannelRef, error)
	UpsertEPGPrograms(ctx context.Context, programs []models.EPGProgram) (int, error)
	// DeleteEPGProgramsBefore purges programs whose end_time is older than cutoff.
	DeleteEPGProgramsBefore(ctx context.Context, providerID int64, cutoff time.Time) (int64, error)
	// NextPrograms returns up to limit programs of the channel that have not
	// ended at `now`, ordered by start time.
	NextPrograms(ctx context.Context, providerID int64, epgChannelID string, now time.Time, limit int) ([]models.EPGProgram, error)
	// CurrentPrograms returns the program airing at `now` for each of the
	// given channels in a single query, keyed by epg channel id.
	CurrentPrograms(ctx context.Context, providerID int64, epgChannelIDs []string, now time.Time) (map[string]models.EPGProgram, error)

	// --- user references ---

	// SweepOrphanRefs deletes favorites and watch history rows whose content
	// id no longer exists, one pass per content type.
	SweepOrphanRefs(ctx context.Context) (favorites, history int64, err error)
}

// SeriesEnrichment carries gap-fill metadata from the enrichment client.
// Empty fields are ignored.
type SeriesEnrichment struct {
	TMDBID   int64
	Plot     string
	Backdrop string
	Rating   string
}
