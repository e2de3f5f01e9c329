package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/tmdb"
	"github.com/voyagen/streamvault/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// DetailResult summarizes one series-detail enrichment pass. A failed series
// never aborts the pass; it is counted and the pool moves on.
type DetailResult struct {
	SeriesOK     int `json:"series_ok"`
	SeriesFailed int `json:"series_failed"`
	Seasons      int `json:"seasons"`
	Episodes     int `json:"episodes"`
}

func (o *Orchestrator) runDetails(ctx context.Context, providerID int64, client CatalogClient) DetailResult {
	list, err := o.cfg.Store.ListSeries(ctx, providerID)
	if err != nil {
		o.cfg.Log.WithError(err).WithField("provider_id", providerID).Error("series listing for detail pass failed")
		return DetailResult{}
	}
	return o.detailPool(ctx, client, list)
}

// RunDetailJob processes one queued detail batch. Batches index into the
// provider's series ordered by id, so a job set enqueued together covers the
// catalog exactly once.
func (o *Orchestrator) RunDetailJob(ctx context.Context, job cache.DetailJob) (DetailResult, error) {
	p, err := o.cfg.Store.GetProvider(ctx, job.ProviderID)
	if err != nil {
		return DetailResult{}, err
	}
	list, err := o.cfg.Store.ListSeries(ctx, job.ProviderID)
	if err != nil {
		return DetailResult{}, err
	}
	lo := job.Batch * job.BatchSize
	if lo >= len(list) || job.BatchSize <= 0 {
		return DetailResult{}, nil
	}
	hi := lo + job.BatchSize
	if hi > len(list) {
		hi = len(list)
	}
	return o.detailPool(ctx, o.cfg.ClientFactory(p), list[lo:hi]), nil
}

func (o *Orchestrator) detailPool(ctx context.Context, client CatalogClient, series []models.Series) DetailResult {
	var ok, failed, seasons, episodes atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.DetailConcurrency)
	for _, s := range series {
		s := s
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, o.cfg.DetailTimeout)
			defer cancel()
			ns, ne, err := o.syncSeriesDetail(cctx, client, s)
			if err != nil {
				failed.Add(1)
				o.cfg.Log.WithError(err).WithFields(map[string]interface{}{
					"series_id": s.ID, "external_id": s.ExternalID,
				}).Warn("series detail failed")
				return nil
			}
			ok.Add(1)
			seasons.Add(int64(ns))
			episodes.Add(int64(ne))
			return nil
		})
	}
	g.Wait()

	return DetailResult{
		SeriesOK:     int(ok.Load()),
		SeriesFailed: int(failed.Load()),
		Seasons:      int(seasons.Load()),
		Episodes:     int(episodes.Load()),
	}
}

// syncSeriesDetail reconciles one show's season/episode tree against the
// upstream detail response and gap-fills metadata from the enrichment client.
func (o *Orchestrator) syncSeriesDetail(ctx context.Context, client CatalogClient, s models.Series) (nSeasons, nEpisodes int, err error) {
	info, err := client.GetSeriesInfo(ctx, s.ExternalID)
	if err != nil {
		return 0, 0, err
	}

	// Many portals leave the seasons array empty and only key the episode
	// map by season number, so seasons come from both.
	bySeason := make(map[int]models.Season)
	for _, se := range info.Seasons {
		n := int(se.SeasonNumber.Int())
		if n < 0 {
			continue
		}
		bySeason[n] = models.Season{
			SeriesID:     s.ID,
			SeasonNumber: n,
			Name:         se.Name,
			Cover:        strPtr(se.Cover.String()),
		}
	}
	epsBySeason := make(map[int]map[int]models.Episode)
	for _, list := range info.Episodes {
		for _, e := range list {
			n := int(e.Season.Int())
			num := int(e.EpisodeNum.Int())
			if n < 0 || num <= 0 {
				continue
			}
			if _, found := bySeason[n]; !found {
				bySeason[n] = models.Season{
					SeriesID:     s.ID,
					SeasonNumber: n,
					Name:         fmt.Sprintf("Season %d", n),
				}
			}
			if epsBySeason[n] == nil {
				epsBySeason[n] = make(map[int]models.Episode)
			}
			var dur *int
			if d := int(e.Info.DurationSec.Int()); d > 0 {
				dur = &d
			}
			epsBySeason[n][num] = models.Episode{
				EpisodeNumber: num,
				ExternalID:    e.ID.String(),
				Title:         e.Title,
				ContainerExt:  e.ContainerExt.String(),
				Plot:          strPtr(e.Info.Plot.String()),
				DurationSecs:  dur,
				AirDate:       strPtr(e.Info.AirDate.String()),
			}
		}
	}

	seasonRows := make([]models.Season, 0, len(bySeason))
	keepSeasons := make([]int, 0, len(bySeason))
	for n, season := range bySeason {
		seasonRows = append(seasonRows, season)
		keepSeasons = append(keepSeasons, n)
	}
	seasonIDs, err := o.cfg.Store.UpsertSeasons(ctx, s.ID, seasonRows)
	if err != nil {
		return 0, 0, err
	}
	if err := o.cfg.Store.DeleteSeasonsNotIn(ctx, s.ID, keepSeasons); err != nil {
		return 0, 0, err
	}

	for n, eps := range epsBySeason {
		seasonID, found := seasonIDs[n]
		if !found {
			continue
		}
		rows := make([]models.Episode, 0, len(eps))
		keep := make([]int, 0, len(eps))
		for num, ep := range eps {
			ep.SeasonID = seasonID
			rows = append(rows, ep)
			keep = append(keep, num)
		}
		count, err := o.cfg.Store.UpsertEpisodes(ctx, seasonID, rows)
		if err != nil {
			return 0, 0, err
		}
		if err := o.cfg.Store.DeleteEpisodesNotIn(ctx, seasonID, keep); err != nil {
			return 0, 0, err
		}
		nEpisodes += count
	}

	if err := o.enrichSeries(ctx, s); err != nil {
		o.cfg.Log.WithError(err).WithField("series_id", s.ID).Debug("metadata gap-fill skipped")
	}
	return len(seasonRows), nEpisodes, nil
}

// enrichSeries fills missing metadata from TMDB. A show with no match or a
// disabled client is left as upstream delivered it.
func (o *Orchestrator) enrichSeries(ctx context.Context, s models.Series) error {
	if o.cfg.TMDB == nil || !o.cfg.TMDB.Enabled() || s.TMDBID != nil {
		return nil
	}
	year := 0
	if s.Year != nil {
		year = *s.Year
	}
	d, err := o.cfg.TMDB.SearchTV(ctx, s.Name, year)
	if errors.Is(err, upstream.ErrNotFound) || errors.Is(err, upstream.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}
	e := store.SeriesEnrichment{
		TMDBID:   d.ID,
		Plot:     d.Overview,
		Backdrop: tmdb.ImageURL(d.BackdropPath),
	}
	if d.VoteAverage > 0 {
		e.Rating = fmt.Sprintf("%.1f", d.VoteAverage)
	}
	return o.cfg.Store.EnrichSeries(ctx, s.ID, e)
}
