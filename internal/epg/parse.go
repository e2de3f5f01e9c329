// Package epg ingests short-EPG guide data per live channel, retains a
// rolling window of programs, and answers now/next queries through a short
// lived cache.
package epg

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/xtream"
)

const listingTimeLayout = "2006-01-02 15:04:05"

// decodeText decodes a base64 guide field, falling back to the raw value for
// portals that send plain text. A plain-text value can itself be valid
// base64 ("Zeit"), so the decoded bytes are accepted only when they form
// valid UTF-8; anything else stays raw.
func decodeText(raw xtream.FlexString) string {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return ""
	}
	if dec, err := base64.StdEncoding.DecodeString(s); err == nil && utf8.Valid(dec) {
		return strings.TrimSpace(string(dec))
	}
	return s
}

// parseListingTime accepts a Unix timestamp string or the portal's
// "YYYY-MM-DD HH:MM:SS" form. Candidates are tried in order.
func parseListingTime(candidates ...xtream.FlexString) (time.Time, bool) {
	for _, c := range candidates {
		s := strings.TrimSpace(c.String())
		if s == "" {
			continue
		}
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 0 {
			return time.Unix(unix, 0).UTC(), true
		}
		if t, err := time.Parse(listingTimeLayout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parsePrograms converts raw guide listings for one channel. Entries missing
// a title, start, or end are dropped rather than stored half-formed, as are
// titles that are not valid UTF-8 (Postgres rejects them, which would fail
// the whole channel batch).
func parsePrograms(providerID int64, epgChannelID string, listings []xtream.EPGListing) []models.EPGProgram {
	if epgChannelID == "" {
		return nil
	}
	out := make([]models.EPGProgram, 0, len(listings))
	for _, l := range listings {
		title := decodeText(l.Title)
		if title == "" || !utf8.ValidString(title) {
			continue
		}
		start, ok := parseListingTime(l.StartTimestamp, l.Start)
		if !ok {
			continue
		}
		end, ok := parseListingTime(l.StopTimestamp, l.Stop, l.End)
		if !ok || !end.After(start) {
			continue
		}
		p := models.EPGProgram{
			ProviderID:   providerID,
			EPGChannelID: epgChannelID,
			Title:        title,
			StartTime:    start,
			EndTime:      end,
		}
		if desc := decodeText(l.Description); desc != "" && utf8.ValidString(desc) {
			p.Description = &desc
		}
		if cat := l.Category.String(); cat != "" {
			p.Category = &cat
		}
		if icon := l.Icon.String(); icon != "" {
			p.Icon = &icon
		}
		if lang := l.Lang.String(); lang != "" {
			p.Lang = &lang
		}
		out = append(out, p)
	}
	return out
}

// pickNowNext classifies the first programs of a channel that have not ended
// yet, ordered by start time: a program already underway is "current" and its
// successor "next"; a program still in the future is only "next".
func pickNowNext(programs []models.EPGProgram, now time.Time) models.NowNext {
	var nn models.NowNext
	if len(programs) == 0 {
		return nn
	}
	first := programs[0]
	if !first.StartTime.After(now) {
		nn.Current = &first
		if len(programs) > 1 {
			second := programs[1]
			nn.Next = &second
		}
		return nn
	}
	nn.Next = &first
	return nn
}
