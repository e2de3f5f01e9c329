package models

import "time"

// EPGProgram is one guide entry, unique per (provider, epg_channel_id, start_time).
type EPGProgram struct {
	ID           int64     `json:"id,omitempty"`
	ProviderID   int64     `json:"provider_id"`
	EPGChannelID string    `json:"epg_channel_id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Category     *string   `json:"category,omitempty"`
	Icon         *string   `json:"icon,omitempty"`
	Lang         *string   `json:"lang,omitempty"`
}

// NowNext is the answer to a "what is on this channel" query. Either field
// may be nil: no current program when the next one starts in the future,
// neither when the channel has no upcoming guide data.
type NowNext struct {
	Current *EPGProgram `json:"current"`
	Next    *EPGProgram `json:"next"`
}
