package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/upstream"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// --- providers ---

const providerColumns = `id, name, base_url, username, password, system, visibility,
	sync_status, live_synced_at, movies_synced_at, series_synced_at, epg_synced_at,
	live_count, movie_count, series_count, epg_sync_interval_seconds, created_at`

func scanProvider(row pgx.Row) (*models.Provider, error) {
	var pr models.Provider
	err := row.Scan(&pr.ID, &pr.Name, &pr.BaseURL, &pr.Username, &pr.Password,
		&pr.System, &pr.Visibility, &pr.SyncStatus,
		&pr.LiveSyncedAt, &pr.MoviesSyncedAt, &pr.SeriesSyncedAt, &pr.EPGSyncedAt,
		&pr.LiveCount, &pr.MovieCount, &pr.SeriesCount,
		&pr.EPGSyncIntervalSeconds, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (p *Postgres) ListProviders(ctx context.Context) ([]models.Provider, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListProviders: %w", err)
	}
	defer rows.Close()
	var out []models.Provider
	for rows.Next() {
		pr, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("ListProviders scan: %w", err)
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

func (p *Postgres) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	pr, err := scanProvider(p.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, upstream.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProvider: %w", err)
	}
	return pr, nil
}

func (p *Postgres) CreateProvider(ctx context.Context, pr *models.Provider) (int64, error) {
	status := pr.SyncStatus
	if status == "" {
		status = models.SyncStatusIdle
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO providers (name, base_url, username, password, system, visibility, sync_status, epg_sync_interval_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		pr.Name, pr.BaseURL, pr.Username, pr.Password, pr.System, pr.Visibility,
		status, pr.EPGSyncIntervalSeconds,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("CreateProvider: %w", err)
	}
	return id, nil
}

func (p *Postgres) DeleteProvider(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteProvider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return upstream.ErrNotFound
	}
	return nil
}

func (p *Postgres) SetProviderSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := p.pool.Exec(ctx, `UPDATE providers SET sync_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("SetProviderSyncStatus: %w", err)
	}
	return nil
}

// kindColumns maps a content kind to its synced-at/count column pair.
var kindColumns = map[string][2]string{
	models.ContentTypeLive:   {"live_synced_at", "live_count"},
	models.ContentTypeMovie:  {"movies_synced_at", "movie_count"},
	models.ContentTypeSeries: {"series_synced_at", "series_count"},
}

func (p *Postgres) SetProviderKindSynced(ctx context.Context, id int64, kind string, count int) error {
	cols, ok := kindColumns[kind]
	if !ok {
		return fmt.Errorf("SetProviderKindSynced: unknown kind %q", kind)
	}
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE providers SET %s = NOW(), %s = $2 WHERE id = $1`, cols[0], cols[1]),
		id, count)
	if err != nil {
		return fmt.Errorf("SetProviderKindSynced: %w", err)
	}
	return nil
}

func (p *Postgres) SetProviderEPGSynced(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE providers SET epg_synced_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("SetProviderEPGSynced: %w", err)
	}
	return nil
}

// --- categories ---

func (p *Postgres) UpsertCategories(ctx context.Context, providerID int64, kind string, cats []models.Category) (map[string]int64, error) {
	ids := make(map[string]int64, len(cats))
	if len(cats) == 0 {
		return ids, nil
	}
	batch := &pgx.Batch{}
	for i := range cats {
		c := &cats[i]
		batch.Queue(
			`INSERT INTO categories (provider_id, external_id, name, kind, parent_external_id, adult)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (provider_id, external_id, kind) DO UPDATE SET
			   name = EXCLUDED.name, parent_external_id = EXCLUDED.parent_external_id, adult = EXCLUDED.adult
			 RETURNING id, external_id`,
			providerID, c.ExternalID, c.Name, kind, c.ParentExternalID, c.Adult)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range cats {
		var id int64
		var ext string
		if err := res.QueryRow().Scan(&id, &ext); err != nil {
			return nil, fmt.Errorf("UpsertCategories: %w", err)
		}
		ids[ext] = id
	}
	return ids, nil
}

func (p *Postgres) DeleteCategoriesNotIn(ctx context.Context, providerID int64, kind string, keep []string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM categories WHERE provider_id = $1 AND kind = $2 AND NOT (external_id = ANY($3))`,
		providerID, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("DeleteCategoriesNotIn: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- content upserts ---

func collectUpserted(res pgx.BatchResults, n int, op string) ([]UpsertedRow, error) {
	out := make([]UpsertedRow, 0, n)
	for i := 0; i < n; i++ {
		var row UpsertedRow
		if err := res.QueryRow().Scan(&row.ID, &row.ExternalID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (p *Postgres) UpsertLiveChannels(ctx context.Context, chs []models.LiveChannel) ([]UpsertedRow, error) {
	if len(chs) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for i := range chs {
		ch := &chs[i]
		batch.Queue(
			`INSERT INTO live_channels (provider_id, external_id, name, icon, epg_channel_id, archive)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (provider_id, external_id) DO UPDATE SET
			   name = EXCLUDED.name, icon = EXCLUDED.icon,
			   epg_channel_id = EXCLUDED.epg_channel_id, archive = EXCLUDED.archive
			 RETURNING id, external_id`,
			ch.ProviderID, ch.ExternalID, ch.Name, ch.Icon, ch.EPGChannelID, ch.Archive)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	return collectUpserted(res, len(chs), "UpsertLiveChannels")
}

func (p *Postgres) UpsertMovies(ctx context.Context, movies []models.Movie) ([]UpsertedRow, error) {
	if len(movies) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for i := range movies {
		m := &movies[i]
		batch.Queue(
			`INSERT INTO movies (provider_id, external_id, name, icon, container_ext, rating, plot, year)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (provider_id, external_id) DO UPDATE SET
			   name = EXCLUDED.name, icon = EXCLUDED.icon, container_ext = EXCLUDED.container_ext,
			   rating = EXCLUDED.rating,
			   plot = COALESCE(EXCLUDED.plot, movies.plot),
			   year = COALESCE(EXCLUDED.year, movies.year)
			 RETURNING id, external_id`,
			m.ProviderID, m.ExternalID, m.Name, m.Icon, m.ContainerExt, m.Rating, m.Plot, m.Year)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	return collectUpserted(res, len(movies), "UpsertMovies")
}

func (p *Postgres) UpsertSeries(ctx context.Context, series []models.Series) ([]UpsertedRow, error) {
	if len(series) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for i := range series {
		s := &series[i]
		batch.Queue(
			`INSERT INTO series (provider_id, external_id, name, cover, backdrop, plot, "cast", director, genre, release_date, rating, year)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (provider_id, external_id) DO UPDATE SET
			   name = EXCLUDED.name, cover = EXCLUDED.cover,
			   backdrop = COALESCE(EXCLUDED.backdrop, series.backdrop),
			   plot = COALESCE(EXCLUDED.plot, series.plot),
			   "cast" = COALESCE(EXCLUDED."cast", series."cast"),
			   director = COALESCE(EXCLUDED.director, series.director),
			   genre = COALESCE(EXCLUDED.genre, series.genre),
			   release_date = COALESCE(EXCLUDED.release_date, series.release_date),
			   rating = COALESCE(EXCLUDED.rating, series.rating),
			   year = COALESCE(EXCLUDED.year, series.year)
			 RETURNING id, external_id`,
			s.ProviderID, s.ExternalID, s.Name, s.Cover, s.Backdrop, s.Plot, s.Cast,
			s.Director, s.Genre, s.ReleaseDate, s.Rating, s.Year)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	return collectUpserted(res, len(series), "UpsertSeries")
}

// contentTables maps a content kind to its entity table, join table, and the
// join table's content-id column.
var contentTables = map[string][3]string{
	models.ContentTypeLive:   {"live_channels", "live_channel_categories", "live_channel_id"},
	models.ContentTypeMovie:  {"movies", "movie_categories", "movie_id"},
	models.ContentTypeSeries: {"series", "series_categories", "series_id"},
}

func (p *Postgres) ReplaceContentCategories(ctx context.Context, kind string, contentIDs []int64, links []CategoryLink) error {
	t, ok := contentTables[kind]
	if !ok {
		return fmt.Errorf("ReplaceContentCategories: unknown kind %q", kind)
	}
	if len(contentIDs) == 0 {
		return nil
	}
	table, col := t[1], t[2]
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, table, col), contentIDs)
	if err != nil {
		return fmt.Errorf("ReplaceContentCategories delete: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	cids := make([]int64, len(links))
	catIDs := make([]int64, len(links))
	for i, l := range links {
		cids[i] = l.ContentID
		catIDs[i] = l.CategoryID
	}
	_, err = p.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, category_id)
		 SELECT unnest($1::bigint[]), unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`, table, col),
		cids, catIDs)
	if err != nil {
		return fmt.Errorf("ReplaceContentCategories insert: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteContentNotIn(ctx context.Context, kind string, providerID int64, keep []string) (int64, error) {
	t, ok := contentTables[kind]
	if !ok {
		return 0, fmt.Errorf("DeleteContentNotIn: unknown kind %q", kind)
	}
	entity, join, col := t[0], t[1], t[2]
	// Category links first to satisfy referential constraints.
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s IN
		 (SELECT id FROM %s WHERE provider_id = $1 AND NOT (external_id = ANY($2)))`,
			join, col, entity),
		providerID, keep)
	if err != nil {
		return 0, fmt.Errorf("DeleteContentNotIn links: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE provider_id = $1 AND NOT (external_id = ANY($2))`, entity),
		providerID, keep)
	if err != nil {
		return 0, fmt.Errorf("DeleteContentNotIn: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- series detail ---

func (p *Postgres) ListSeries(ctx context.Context, providerID int64) ([]models.Series, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, provider_id, external_id, name, cover, backdrop, plot, "cast", director,
		        genre, release_date, rating, tmdb_id, year, created_at
		 FROM series WHERE provider_id = $1 ORDER BY id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("ListSeries: %w", err)
	}
	defer rows.Close()
	var out []models.Series
	for rows.Next() {
		var s models.Series
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.ExternalID, &s.Name, &s.Cover,
			&s.Backdrop, &s.Plot, &s.Cast, &s.Director, &s.Genre, &s.ReleaseDate,
			&s.Rating, &s.TMDBID, &s.Year, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListSeries scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CountSeries(ctx context.Context, providerID int64) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM series WHERE provider_id = $1`, providerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountSeries: %w", err)
	}
	return n, nil
}

func (p *Postgres) UpsertSeasons(ctx context.Context, seriesID int64, seasons []models.Season) (map[int]int64, error) {
	ids := make(map[int]int64, len(seasons))
	if len(seasons) == 0 {
		return ids, nil
	}
	batch := &pgx.Batch{}
	for i := range seasons {
		s := &seasons[i]
		batch.Queue(
			`INSERT INTO seasons (series_id, season_number, name, cover)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (series_id, season_number) DO UPDATE SET
			   name = EXCLUDED.name, cover = COALESCE(EXCLUDED.cover, seasons.cover)
			 RETURNING id, season_number`,
			seriesID, s.SeasonNumber, s.Name, s.Cover)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range seasons {
		var id int64
		var num int
		if err := res.QueryRow().Scan(&id, &num); err != nil {
			return nil, fmt.Errorf("UpsertSeasons: %w", err)
		}
		ids[num] = id
	}
	return ids, nil
}

func (p *Postgres) DeleteSeasonsNotIn(ctx context.Context, seriesID int64, keep []int) error {
	// Episodes of removed seasons first.
	_, err := p.pool.Exec(ctx,
		`DELETE FROM episodes WHERE season_id IN
		 (SELECT id FROM seasons WHERE series_id = $1 AND NOT (season_number = ANY($2)))`,
		seriesID, keep)
	if err != nil {
		return fmt.Errorf("DeleteSeasonsNotIn episodes: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`DELETE FROM seasons WHERE series_id = $1 AND NOT (season_number = ANY($2))`,
		seriesID, keep)
	if err != nil {
		return fmt.Errorf("DeleteSeasonsNotIn: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertEpisodes(ctx context.Context, seasonID int64, eps []models.Episode) (int, error) {
	if len(eps) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range eps {
		e := &eps[i]
		batch.Queue(
			`INSERT INTO episodes (season_id, episode_number, external_id, title, container_ext, plot, duration_secs, air_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (season_id, episode_number) DO UPDATE SET
			   external_id = EXCLUDED.external_id, title = EXCLUDED.title,
			   container_ext = EXCLUDED.container_ext,
			   plot = COALESCE(EXCLUDED.plot, episodes.plot),
			   duration_secs = COALESCE(EXCLUDED.duration_secs, episodes.duration_secs),
			   air_date = COALESCE(EXCLUDED.air_date, episodes.air_date)`,
			seasonID, e.EpisodeNumber, e.ExternalID, e.Title, e.ContainerExt,
			e.Plot, e.DurationSecs, e.AirDate)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range eps {
		if _, err := res.Exec(); err != nil {
			return 0, fmt.Errorf("UpsertEpisodes: %w", err)
		}
	}
	return len(eps), nil
}

func (p *Postgres) DeleteEpisodesNotIn(ctx context.Context, seasonID int64, keep []int) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM episodes WHERE season_id = $1 AND NOT (episode_number = ANY($2))`,
		seasonID, keep)
	if err != nil {
		return fmt.Errorf("DeleteEpisodesNotIn: %w", err)
	}
	return nil
}

func (p *Postgres) EnrichSeries(ctx context.Context, seriesID int64, e SeriesEnrichment) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE series SET
		   tmdb_id = COALESCE(tmdb_id, NULLIF($2, 0)),
		   plot = COALESCE(plot, NULLIF($3, '')),
		   backdrop = COALESCE(backdrop, NULLIF($4, '')),
		   rating = COALESCE(rating, NULLIF($5, ''))
		 WHERE id = $1`,
		seriesID, e.TMDBID, e.Plot, e.Backdrop, e.Rating)
	if err != nil {
		return fmt.Errorf("EnrichSeries: %w", err)
	}
	return nil
}

// --- EPG ---

func (p *Postgres) ListEPGChannelRefs(ctx context.Context, providerID int64) ([]EPGChannelRef, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT external_id, epg_channel_id FROM live_channels
		 WHERE provider_id = $1 AND epg_channel_id IS NOT NULL AND epg_channel_id <> ''`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("ListEPGChannelRefs: %w", err)
	}
	defer rows.Close()
	var out []EPGChannelRef
	for rows.Next() {
		var ref EPGChannelRef
		if err := rows.Scan(&ref.StreamID, &ref.EPGChannelID); err != nil {
			return nil, fmt.Errorf("ListEPGChannelRefs scan: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertEPGPrograms(ctx context.Context, programs []models.EPGProgram) (int, error) {
	if len(programs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range programs {
		pr := &programs[i]
		batch.Queue(
			`INSERT INTO epg_programs (provider_id, epg_channel_id, title, description, start_time, end_time, category, icon, lang)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (provider_id, epg_channel_id, start_time) DO UPDATE SET
			   title = EXCLUDED.title, description = EXCLUDED.description,
			   end_time = EXCLUDED.end_time, category = EXCLUDED.category,
			   icon = EXCLUDED.icon, lang = EXCLUDED.lang`,
			pr.ProviderID, pr.EPGChannelID, pr.Title, pr.Description,
			pr.StartTime, pr.EndTime, pr.Category, pr.Icon, pr.Lang)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range programs {
		if _, err := res.Exec(); err != nil {
			return 0, fmt.Errorf("UpsertEPGPrograms: %w", err)
		}
	}
	return len(programs), nil
}

func (p *Postgres) DeleteEPGProgramsBefore(ctx context.Context, providerID int64, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM epg_programs WHERE provider_id = $1 AND end_time < $2`,
		providerID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteEPGProgramsBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}

const epgColumns = `id, provider_id, epg_channel_id, title, description, start_time, end_time, category, icon, lang`

func scanEPGProgram(rows pgx.Rows) (models.EPGProgram, error) {
	var pr models.EPGProgram
	err := rows.Scan(&pr.ID, &pr.ProviderID, &pr.EPGChannelID, &pr.Title, &pr.Description,
		&pr.StartTime, &pr.EndTime, &pr.Category, &pr.Icon, &pr.Lang)
	return pr, err
}

func (p *Postgres) NextPrograms(ctx context.Context, providerID int64, epgChannelID string, now time.Time, limit int) ([]models.EPGProgram, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+epgColumns+` FROM epg_programs
		 WHERE provider_id = $1 AND epg_channel_id = $2 AND end_time > $3
		 ORDER BY start_time ASC LIMIT $4`,
		providerID, epgChannelID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("NextPrograms: %w", err)
	}
	defer rows.Close()
	var out []models.EPGProgram
	for rows.Next() {
		pr, err := scanEPGProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("NextPrograms scan: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) CurrentPrograms(ctx context.Context, providerID int64, epgChannelIDs []string, now time.Time) (map[string]models.EPGProgram, error) {
	out := make(map[string]models.EPGProgram, len(epgChannelIDs))
	if len(epgChannelIDs) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+epgColumns+` FROM epg_programs
		 WHERE provider_id = $1 AND epg_channel_id = ANY($2)
		   AND start_time <= $3 AND end_time > $3`,
		providerID, epgChannelIDs, now)
	if err != nil {
		return nil, fmt.Errorf("CurrentPrograms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		pr, err := scanEPGProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("CurrentPrograms scan: %w", err)
		}
		out[pr.EPGChannelID] = pr
	}
	return out, rows.Err()
}

// --- user references ---

// refSweep is one orphan sweep: delete rows of a reference table whose
// content id of one type no longer exists. Content types are a small closed
// set; each gets its own scoped delete rather than a dynamic join.
var refSweeps = []struct {
	contentType string
	entityTable string
}{
	{models.ContentTypeLive, "live_channels"},
	{models.ContentTypeMovie, "movies"},
	{models.ContentTypeSeries, "series"},
	{models.ContentTypeEpisode, "episodes"},
}

func (p *Postgres) SweepOrphanRefs(ctx context.Context) (int64, int64, error) {
	var favorites, history int64
	for _, sweep := range refSweeps {
		for _, refTable := range []string{"favorites", "watch_history"} {
			tag, err := p.pool.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE content_type = $1
				 AND content_id NOT IN (SELECT id FROM %s)`, refTable, sweep.entityTable),
				sweep.contentType)
			if err != nil {
				return favorites, history, fmt.Errorf("SweepOrphanRefs %s/%s: %w", refTable, sweep.contentType, err)
			}
			if refTable == "favorites" {
				favorites += tag.RowsAffected()
			} else {
				history += tag.RowsAffected()
			}
		}
	}
	return favorites, history, nil
}
