// Package sync drives catalog reconciliation for one provider: categories
// first, then live/movie/series listings in parallel, then optional series
// detail enrichment and the user-reference orphan sweep.
package sync

import (
	"context"

	"github.com/voyagen/streamvault/internal/xtream"
)

// CatalogClient is the slice of the upstream client the sync engine uses.
// *xtream.Client satisfies it; tests substitute a recording fake.
type CatalogClient interface {
	GetLiveCategories(ctx context.Context) ([]xtream.CategoryEntry, error)
	GetVODCategories(ctx context.Context) ([]xtream.CategoryEntry, error)
	GetSeriesCategories(ctx context.Context) ([]xtream.CategoryEntry, error)
	GetLiveStreams(ctx context.Context, categoryID string) ([]xtream.LiveStreamEntry, error)
	GetVODStreams(ctx context.Context, categoryID string) ([]xtream.VODStreamEntry, error)
	GetSeries(ctx context.Context, categoryID string) ([]xtream.SeriesEntry, error)
	GetSeriesInfo(ctx context.Context, seriesID string) (*xtream.SeriesInfo, error)
}
