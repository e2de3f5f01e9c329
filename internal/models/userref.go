package models

// Content types used by the polymorphic favorite/watch-history references.
// A closed set: the orphan sweep runs one pass per value.
const (
	ContentTypeLive    = "live"
	ContentTypeMovie   = "movie"
	ContentTypeSeries  = "series"
	ContentTypeEpisode = "episode"
)

// Favorite is a user bookmark referencing one content row by type + id.
// Favorites are never written by the sync engine, only swept when the row
// they point at disappears upstream.
type Favorite struct {
	ID          int64  `json:"id,omitempty"`
	UserID      int64  `json:"user_id"`
	ContentType string `json:"content_type"`
	ContentID   int64  `json:"content_id"`
}

// WatchHistory records playback position for one content row.
type WatchHistory struct {
	ID          int64   `json:"id,omitempty"`
	UserID      int64   `json:"user_id"`
	ContentType string  `json:"content_type"`
	ContentID   int64   `json:"content_id"`
	PositionSec float64 `json:"position_sec"`
}
