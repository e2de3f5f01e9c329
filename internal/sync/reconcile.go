package sync

import (
	"context"
	"fmt"

	"github.com/voyagen/streamvault/internal/metrics"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/xtream"
)

// upsertBatchSize bounds single-statement size; large providers ship tens of
// thousands of rows per listing.
const upsertBatchSize = 500

// kindSpec ties one content kind to its fetch, key extraction, and batch
// upsert. One generic reconciliation routine serves all three kinds.
type kindSpec[E any] struct {
	kind       string
	fetch      func(context.Context) ([]E, error)
	externalID func(E) string
	categories func(E) []string
	upsert     func(context.Context, []E) ([]store.UpsertedRow, error)
}

// reconcileKind makes local storage for one kind match the upstream listing:
// batch upserts preserving local ids, category link rebuild per batch, and a
// final prune of rows absent upstream. A fetch failure aborts this kind only;
// rows committed by earlier batches stay (upserts are idempotent, the next
// run converges).
func reconcileKind[E any](ctx context.Context, st store.Store, providerID int64, categoryIDs map[string]int64, spec kindSpec[E]) (int, error) {
	listing, err := spec.fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s fetch: %w", spec.kind, err)
	}

	keep := make([]string, 0, len(listing))
	for start := 0; start < len(listing); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(listing) {
			end = len(listing)
		}
		batch := listing[start:end]

		rows, err := spec.upsert(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("%s upsert: %w", spec.kind, err)
		}

		// Rebuild category links for this batch. Upstream ids that resolve to
		// no known category are skipped, not errors.
		byExternal := make(map[string][]string, len(batch))
		for _, e := range batch {
			byExternal[spec.externalID(e)] = spec.categories(e)
		}
		contentIDs := make([]int64, 0, len(rows))
		var links []store.CategoryLink
		for _, row := range rows {
			keep = append(keep, row.ExternalID)
			contentIDs = append(contentIDs, row.ID)
			for _, catExt := range byExternal[row.ExternalID] {
				if catID, ok := categoryIDs[catExt]; ok {
					links = append(links, store.CategoryLink{ContentID: row.ID, CategoryID: catID})
				}
			}
		}
		if err := st.ReplaceContentCategories(ctx, spec.kind, contentIDs, links); err != nil {
			return 0, fmt.Errorf("%s categories: %w", spec.kind, err)
		}
	}

	pruned, err := st.DeleteContentNotIn(ctx, spec.kind, providerID, keep)
	if err != nil {
		return 0, fmt.Errorf("%s prune: %w", spec.kind, err)
	}
	metrics.ReconcileRows.WithLabelValues(spec.kind).Add(float64(len(keep)))
	metrics.ReconcilePruned.WithLabelValues(spec.kind).Add(float64(pruned))
	return len(keep), nil
}

// categoryMaps holds the external id → local id mapping per content kind.
type categoryMaps struct {
	live   map[string]int64
	movie  map[string]int64
	series map[string]int64
}

func (m categoryMaps) forKind(kind string) map[string]int64 {
	switch kind {
	case models.ContentTypeLive:
		return m.live
	case models.ContentTypeMovie:
		return m.movie
	default:
		return m.series
	}
}

// reconcileCategories syncs all three category listings. Categories are a
// referenced dependency of the content stages and must succeed first.
func reconcileCategories(ctx context.Context, st store.Store, providerID int64, client CatalogClient) (categoryMaps, error) {
	var maps categoryMaps
	stages := []struct {
		kind  string
		fetch func(context.Context) ([]xtream.CategoryEntry, error)
		dst   *map[string]int64
	}{
		{models.CategoryKindLive, client.GetLiveCategories, &maps.live},
		{models.CategoryKindVOD, client.GetVODCategories, &maps.movie},
		{models.CategoryKindSeries, client.GetSeriesCategories, &maps.series},
	}
	for _, stage := range stages {
		entries, err := stage.fetch(ctx)
		if err != nil {
			return maps, fmt.Errorf("%s categories fetch: %w", stage.kind, err)
		}
		cats := make([]models.Category, 0, len(entries))
		keep := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.CategoryID.String() == "" {
				continue
			}
			cats = append(cats, categoryFromEntry(providerID, stage.kind, e))
			keep = append(keep, e.CategoryID.String())
		}
		ids, err := st.UpsertCategories(ctx, providerID, stage.kind, cats)
		if err != nil {
			return maps, fmt.Errorf("%s categories upsert: %w", stage.kind, err)
		}
		if _, err := st.DeleteCategoriesNotIn(ctx, providerID, stage.kind, keep); err != nil {
			return maps, fmt.Errorf("%s categories prune: %w", stage.kind, err)
		}
		*stage.dst = ids
	}
	return maps, nil
}
