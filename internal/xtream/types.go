package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The panel ecosystem is loose about JSON types: ids and flags arrive as
// numbers on some panels and as quoted strings on others. FlexInt and
// FlexString absorb both.

// FlexInt decodes a JSON number, numeric string, or null into an int64.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Some panels put floats in string flags ("1.0").
			fl, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return err
			}
			*f = FlexInt(int64(fl))
			return nil
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(int64(n))
	return nil
}

// Int returns the decoded value.
func (f FlexInt) Int() int64 { return int64(f) }

// FlexString decodes a JSON string, number, bool, or null into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(data))
	return nil
}

// String returns the decoded value.
func (f FlexString) String() string { return string(f) }

// AccountInfo is the response to the account info action.
type AccountInfo struct {
	UserInfo struct {
		Username       FlexString `json:"username"`
		Status         FlexString `json:"status"`
		ExpDate        FlexString `json:"exp_date"`
		MaxConnections FlexInt    `json:"max_connections"`
	} `json:"user_info"`
	ServerInfo struct {
		URL      FlexString `json:"url"`
		Port     FlexString `json:"port"`
		Protocol FlexString `json:"server_protocol"`
	} `json:"server_info"`
}

// CategoryEntry is one entry of a category listing (live, vod, or series).
type CategoryEntry struct {
	CategoryID FlexString `json:"category_id"`
	Name       string     `json:"category_name"`
	ParentID   FlexString `json:"parent_id"`
	Adult      FlexInt    `json:"is_adult"`
}

// LiveStreamEntry is one entry of the live stream listing.
type LiveStreamEntry struct {
	StreamID     FlexInt      `json:"stream_id"`
	Name         string       `json:"name"`
	StreamIcon   FlexString   `json:"stream_icon"`
	EPGChannelID FlexString   `json:"epg_channel_id"`
	TVArchive    FlexInt      `json:"tv_archive"`
	CategoryID   FlexString   `json:"category_id"`
	CategoryIDs  []FlexString `json:"category_ids"`
}

// VODStreamEntry is one entry of the VOD stream listing.
type VODStreamEntry struct {
	StreamID     FlexInt      `json:"stream_id"`
	Name         string       `json:"name"`
	StreamIcon   FlexString   `json:"stream_icon"`
	ContainerExt FlexString   `json:"container_extension"`
	Rating       FlexString   `json:"rating"`
	Plot         FlexString   `json:"plot"`
	Year         FlexString   `json:"year"`
	CategoryID   FlexString   `json:"category_id"`
	CategoryIDs  []FlexString `json:"category_ids"`
}

// SeriesEntry is one entry of the series listing.
type SeriesEntry struct {
	SeriesID    FlexInt      `json:"series_id"`
	Name        string       `json:"name"`
	Cover       FlexString   `json:"cover"`
	Plot        FlexString   `json:"plot"`
	Cast        FlexString   `json:"cast"`
	Director    FlexString   `json:"director"`
	Genre       FlexString   `json:"genre"`
	ReleaseDate FlexString   `json:"releaseDate"`
	Rating      FlexString   `json:"rating"`
	Backdrop    []string     `json:"backdrop_path"`
	Year        FlexString   `json:"year"`
	CategoryID  FlexString   `json:"category_id"`
	CategoryIDs []FlexString `json:"category_ids"`
}

// SeriesInfo is the detail response for one series: the show summary plus
// episodes grouped by season number.
type SeriesInfo struct {
	Info struct {
		Name        string     `json:"name"`
		Cover       FlexString `json:"cover"`
		Plot        FlexString `json:"plot"`
		Cast        FlexString `json:"cast"`
		Director    FlexString `json:"director"`
		Genre       FlexString `json:"genre"`
		ReleaseDate FlexString `json:"releaseDate"`
		Rating      FlexString `json:"rating"`
		Backdrop    []string   `json:"backdrop_path"`
	} `json:"info"`
	Seasons []struct {
		SeasonNumber FlexInt    `json:"season_number"`
		Name         string     `json:"name"`
		Cover        FlexString `json:"cover"`
	} `json:"seasons"`
	Episodes map[string][]EpisodeEntry `json:"episodes"`
}

// EpisodeEntry is one episode inside a SeriesInfo response.
type EpisodeEntry struct {
	ID           FlexString `json:"id"`
	EpisodeNum   FlexInt    `json:"episode_num"`
	Season       FlexInt    `json:"season"`
	Title        string     `json:"title"`
	ContainerExt FlexString `json:"container_extension"`
	Info         struct {
		Plot        FlexString `json:"plot"`
		DurationSec FlexInt    `json:"duration_secs"`
		AirDate     FlexString `json:"releasedate"`
	} `json:"info"`
}

// VODInfo is the detail response for one VOD entry.
type VODInfo struct {
	Info struct {
		Name        string     `json:"name"`
		Plot        FlexString `json:"plot"`
		Cast        FlexString `json:"cast"`
		Director    FlexString `json:"director"`
		Genre       FlexString `json:"genre"`
		ReleaseDate FlexString `json:"releasedate"`
		Rating      FlexString `json:"rating"`
		TMDBID      FlexInt    `json:"tmdb_id"`
		CoverBig    FlexString `json:"cover_big"`
	} `json:"info"`
	MovieData struct {
		StreamID     FlexInt    `json:"stream_id"`
		Name         string     `json:"name"`
		ContainerExt FlexString `json:"container_extension"`
		CategoryID   FlexString `json:"category_id"`
	} `json:"movie_data"`
}

// ShortEPG is the response to the short EPG action for one stream.
type ShortEPG struct {
	Listings []EPGListing `json:"epg_listings"`
}

// EPGListing is one raw guide entry. Title and description are usually
// base64 encoded; start/stop come as Unix timestamp strings with a
// "YYYY-MM-DD HH:MM:SS" fallback in start/end.
type EPGListing struct {
	ID             FlexString `json:"id"`
	EPGID          FlexString `json:"epg_id"`
	ChannelID      FlexString `json:"channel_id"`
	Title          FlexString `json:"title"`
	Description    FlexString `json:"description"`
	Lang           FlexString `json:"lang"`
	Start          FlexString `json:"start"`
	End            FlexString `json:"end"`
	Stop           FlexString `json:"stop"`
	StartTimestamp FlexString `json:"start_timestamp"`
	StopTimestamp  FlexString `json:"stop_timestamp"`
	Category       FlexString `json:"category"`
	Icon           FlexString `json:"icon"`
}
