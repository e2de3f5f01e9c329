package models

import "time"

// LiveChannel is a live stream entry. The (ProviderID, ExternalID) pair is the
// reconciliation key; ID is the stable local primary key and never changes
// across resyncs.
type LiveChannel struct {
	ID           int64   `json:"id,omitempty"`
	ProviderID   int64   `json:"provider_id"`
	ExternalID   string  `json:"external_id"`
	Name         string  `json:"name"`
	Icon         *string `json:"icon,omitempty"`
	EPGChannelID *string `json:"epg_channel_id,omitempty"`
	Archive      bool    `json:"archive"`
	CategoryIDs  []string `json:"-"` // upstream category external ids, not persisted directly

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Movie is a VOD entry keyed by (ProviderID, ExternalID).
type Movie struct {
	ID           int64   `json:"id,omitempty"`
	ProviderID   int64   `json:"provider_id"`
	ExternalID   string  `json:"external_id"`
	Name         string  `json:"name"`
	Icon         *string `json:"icon,omitempty"`
	ContainerExt string  `json:"container_ext,omitempty"`
	Rating       *string `json:"rating,omitempty"`
	Plot         *string `json:"plot,omitempty"`
	Year         *int    `json:"year,omitempty"`
	CategoryIDs  []string `json:"-"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Series is a show keyed by (ProviderID, ExternalID). Seasons and episodes
// hang off it and are populated by the detail-enrichment stage.
type Series struct {
	ID          int64   `json:"id,omitempty"`
	ProviderID  int64   `json:"provider_id"`
	ExternalID  string  `json:"external_id"`
	Name        string  `json:"name"`
	Cover       *string `json:"cover,omitempty"`
	Backdrop    *string `json:"backdrop,omitempty"`
	Plot        *string `json:"plot,omitempty"`
	Cast        *string `json:"cast,omitempty"`
	Director    *string `json:"director,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	ReleaseDate *string `json:"release_date,omitempty"`
	Rating      *string `json:"rating,omitempty"`
	TMDBID      *int64  `json:"tmdb_id,omitempty"`
	Year        *int    `json:"year,omitempty"`
	CategoryIDs []string `json:"-"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Season belongs to a Series, unique per (SeriesID, SeasonNumber).
type Season struct {
	ID           int64   `json:"id,omitempty"`
	SeriesID     int64   `json:"series_id"`
	SeasonNumber int     `json:"season_number"`
	Name         string  `json:"name,omitempty"`
	Cover        *string `json:"cover,omitempty"`
}

// Episode belongs to a Season, unique per (SeasonID, EpisodeNumber).
type Episode struct {
	ID            int64   `json:"id,omitempty"`
	SeasonID      int64   `json:"season_id"`
	EpisodeNumber int     `json:"episode_number"`
	ExternalID    string  `json:"external_id"`
	Title         string  `json:"title"`
	ContainerExt  string  `json:"container_ext,omitempty"`
	Plot          *string `json:"plot,omitempty"`
	DurationSecs  *int    `json:"duration_secs,omitempty"`
	AirDate       *string `json:"air_date,omitempty"`
}
