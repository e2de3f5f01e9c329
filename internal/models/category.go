package models

// Category kinds (aligned with the upstream category endpoints).
const (
	CategoryKindLive   = "live"
	CategoryKindVOD    = "vod"
	CategoryKindSeries = "series"
)

// Category is an upstream category/group, unique per (provider, external_id, kind).
type Category struct {
	ID               int64   `json:"id,omitempty"`
	ProviderID       int64   `json:"provider_id"`
	ExternalID       string  `json:"external_id"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	ParentExternalID *string `json:"parent_external_id,omitempty"`
	Adult            bool    `json:"adult"`
}
