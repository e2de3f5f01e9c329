package sync

import (
	"strconv"
	"strings"

	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/xtream"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func yearPtr(s string) *int {
	s = strings.TrimSpace(s)
	if len(s) >= 4 {
		if y, err := strconv.Atoi(s[:4]); err == nil && y > 1800 {
			return &y
		}
	}
	return nil
}

// entryCategoryIDs prefers the multi-category field newer panels send and
// falls back to the single category id.
func entryCategoryIDs(primary xtream.FlexString, all []xtream.FlexString) []string {
	if len(all) > 0 {
		out := make([]string, 0, len(all))
		for _, id := range all {
			if id.String() != "" {
				out = append(out, id.String())
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if primary.String() != "" {
		return []string{primary.String()}
	}
	return nil
}

func categoryFromEntry(providerID int64, kind string, e xtream.CategoryEntry) models.Category {
	return models.Category{
		ProviderID:       providerID,
		ExternalID:       e.CategoryID.String(),
		Name:             e.Name,
		Kind:             kind,
		ParentExternalID: strPtr(e.ParentID.String()),
		Adult:            e.Adult.Int() != 0,
	}
}

func liveFromEntry(providerID int64, e xtream.LiveStreamEntry) models.LiveChannel {
	return models.LiveChannel{
		ProviderID:   providerID,
		ExternalID:   strconv.FormatInt(e.StreamID.Int(), 10),
		Name:         e.Name,
		Icon:         strPtr(e.StreamIcon.String()),
		EPGChannelID: strPtr(e.EPGChannelID.String()),
		Archive:      e.TVArchive.Int() != 0,
		CategoryIDs:  entryCategoryIDs(e.CategoryID, e.CategoryIDs),
	}
}

func movieFromEntry(providerID int64, e xtream.VODStreamEntry) models.Movie {
	return models.Movie{
		ProviderID:   providerID,
		ExternalID:   strconv.FormatInt(e.StreamID.Int(), 10),
		Name:         e.Name,
		Icon:         strPtr(e.StreamIcon.String()),
		ContainerExt: e.ContainerExt.String(),
		Rating:       strPtr(e.Rating.String()),
		Plot:         strPtr(e.Plot.String()),
		Year:         yearPtr(e.Year.String()),
		CategoryIDs:  entryCategoryIDs(e.CategoryID, e.CategoryIDs),
	}
}

func seriesFromEntry(providerID int64, e xtream.SeriesEntry) models.Series {
	var backdrop *string
	if len(e.Backdrop) > 0 && e.Backdrop[0] != "" {
		backdrop = &e.Backdrop[0]
	}
	return models.Series{
		ProviderID:  providerID,
		ExternalID:  strconv.FormatInt(e.SeriesID.Int(), 10),
		Name:        e.Name,
		Cover:       strPtr(e.Cover.String()),
		Backdrop:    backdrop,
		Plot:        strPtr(e.Plot.String()),
		Cast:        strPtr(e.Cast.String()),
		Director:    strPtr(e.Director.String()),
		Genre:       strPtr(e.Genre.String()),
		ReleaseDate: strPtr(e.ReleaseDate.String()),
		Rating:      strPtr(e.Rating.String()),
		Year:        yearPtr(e.Year.String()),
		CategoryIDs: entryCategoryIDs(e.CategoryID, e.CategoryIDs),
	}
}
