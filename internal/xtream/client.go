// Package xtream is the client for the upstream catalog API
// (player_api.php protocol): categories, stream listings, detail lookups,
// and the per-channel short EPG.
package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voyagen/streamvault/internal/upstream"
)

const defaultHTTPTimeout = 30 * time.Second

// Client talks to one provider's panel. All methods follow the same retry
// policy: 429 and transport failures are retried with exponential backoff
// up to the configured cap; any other non-2xx status is terminal.
type Client struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	retry      upstream.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout sets the per-request timeout. Zero keeps the default. It is
// applied after all options, so it survives a later WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry replaces the retry schedule.
func WithRetry(cfg upstream.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// New creates a Client for one provider account.
func New(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      upstream.DefaultRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	return c
}

// call performs one player_api.php action and returns the raw JSON body.
func (c *Client) call(ctx context.Context, action string, params url.Values) ([]byte, error) {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	reqURL := c.baseURL + "/player_api.php?" + q.Encode()

	var body []byte
	err := upstream.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &upstream.Retryable{Err: &upstream.TransportError{Err: err}}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			return &upstream.Retryable{Err: upstream.ErrRateLimited}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			return &upstream.HTTPError{Status: resp.StatusCode}
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &upstream.Retryable{Err: &upstream.TransportError{Err: err}}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalizeBody(body), nil
}

// normalizeBody unwraps panels that send JSON encoded as a JSON string body
// ("{\"user_info\":...}").
func normalizeBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return trimmed
	}
	return []byte(inner)
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", upstream.ErrParse, err)
	}
	return v, nil
}

// GetAccountInfo fetches account and server info (no action parameter).
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.call(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	info, err := decode[AccountInfo](body)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetLiveCategories fetches the live category listing.
func (c *Client) GetLiveCategories(ctx context.Context) ([]CategoryEntry, error) {
	return c.categories(ctx, "get_live_categories")
}

// GetVODCategories fetches the VOD category listing.
func (c *Client) GetVODCategories(ctx context.Context) ([]CategoryEntry, error) {
	return c.categories(ctx, "get_vod_categories")
}

// GetSeriesCategories fetches the series category listing.
func (c *Client) GetSeriesCategories(ctx context.Context) ([]CategoryEntry, error) {
	return c.categories(ctx, "get_series_categories")
}

func (c *Client) categories(ctx context.Context, action string) ([]CategoryEntry, error) {
	body, err := c.call(ctx, action, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]CategoryEntry](body)
}

func categoryFilter(categoryID string) url.Values {
	if categoryID == "" {
		return nil
	}
	return url.Values{"category_id": {categoryID}}
}

// GetLiveStreams fetches the live stream listing, optionally scoped to one category.
func (c *Client) GetLiveStreams(ctx context.Context, categoryID string) ([]LiveStreamEntry, error) {
	body, err := c.call(ctx, "get_live_streams", categoryFilter(categoryID))
	if err != nil {
		return nil, err
	}
	return decode[[]LiveStreamEntry](body)
}

// GetVODStreams fetches the VOD listing, optionally scoped to one category.
func (c *Client) GetVODStreams(ctx context.Context, categoryID string) ([]VODStreamEntry, error) {
	body, err := c.call(ctx, "get_vod_streams", categoryFilter(categoryID))
	if err != nil {
		return nil, err
	}
	return decode[[]VODStreamEntry](body)
}

// GetSeries fetches the series listing, optionally scoped to one category.
func (c *Client) GetSeries(ctx context.Context, categoryID string) ([]SeriesEntry, error) {
	body, err := c.call(ctx, "get_series", categoryFilter(categoryID))
	if err != nil {
		return nil, err
	}
	return decode[[]SeriesEntry](body)
}

// GetSeriesInfo fetches seasons and episodes for one series.
func (c *Client) GetSeriesInfo(ctx context.Context, seriesID string) (*SeriesInfo, error) {
	body, err := c.call(ctx, "get_series_info", url.Values{"series_id": {seriesID}})
	if err != nil {
		return nil, err
	}
	info, err := decode[SeriesInfo](body)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetVODInfo fetches detail for one VOD entry.
func (c *Client) GetVODInfo(ctx context.Context, vodID string) (*VODInfo, error) {
	body, err := c.call(ctx, "get_vod_info", url.Values{"vod_id": {vodID}})
	if err != nil {
		return nil, err
	}
	info, err := decode[VODInfo](body)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetShortEPG fetches up to limit upcoming guide entries for one live stream.
func (c *Client) GetShortEPG(ctx context.Context, streamID string, limit int) (*ShortEPG, error) {
	params := url.Values{"stream_id": {streamID}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.call(ctx, "get_short_epg", params)
	if err != nil {
		return nil, err
	}
	epg, err := decode[ShortEPG](body)
	if err != nil {
		return nil, err
	}
	return &epg, nil
}

// LiveStreamURL builds the playable URL for a live stream id.
func (c *Client) LiveStreamURL(streamID, ext string) string {
	return c.streamURL("live", streamID, ext)
}

// MovieStreamURL builds the playable URL for a VOD stream id.
func (c *Client) MovieStreamURL(streamID, ext string) string {
	return c.streamURL("movie", streamID, ext)
}

// EpisodeStreamURL builds the playable URL for an episode id.
func (c *Client) EpisodeStreamURL(episodeID, ext string) string {
	return c.streamURL("series", episodeID, ext)
}

func (c *Client) streamURL(kind, id, ext string) string {
	if ext == "" {
		ext = "ts"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", c.baseURL, kind, c.username, c.password, id, ext)
}
