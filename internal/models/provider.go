package models

import "time"

// Sync status values for Provider.SyncStatus.
const (
	SyncStatusIdle      = "idle"
	SyncStatusSyncing   = "syncing"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// DefaultEPGSyncInterval is used when a provider does not set its own.
const DefaultEPGSyncInterval = 6 * time.Hour

// Provider represents a remote Xtream-codes account whose catalog is mirrored locally.
type Provider struct {
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	BaseURL    string `json:"base_url"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	System     bool   `json:"system"`
	Visibility string `json:"visibility,omitempty"`

	SyncStatus string `json:"sync_status"`

	LiveSyncedAt   *time.Time `json:"live_synced_at,omitempty"`
	MoviesSyncedAt *time.Time `json:"movies_synced_at,omitempty"`
	SeriesSyncedAt *time.Time `json:"series_synced_at,omitempty"`
	EPGSyncedAt    *time.Time `json:"epg_synced_at,omitempty"`

	LiveCount   int `json:"live_count"`
	MovieCount  int `json:"movie_count"`
	SeriesCount int `json:"series_count"`

	// EPGSyncIntervalSeconds gates how often the EPG scheduler re-fetches
	// this provider's guide. Zero means DefaultEPGSyncInterval.
	EPGSyncIntervalSeconds int `json:"epg_sync_interval_seconds,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// EPGSyncInterval returns the effective guide refresh interval.
func (p *Provider) EPGSyncInterval() time.Duration {
	if p.EPGSyncIntervalSeconds > 0 {
		return time.Duration(p.EPGSyncIntervalSeconds) * time.Second
	}
	return DefaultEPGSyncInterval
}
