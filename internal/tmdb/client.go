// Package tmdb is the secondary metadata lookup client used to backfill
// plot/cast/rating/images when the primary catalog source omits them.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voyagen/streamvault/internal/upstream"
)

const (
	apiBaseURL         = "https://api.themoviedb.org/3"
	imageBaseURL       = "https://image.tmdb.org/t/p"
	imageSize          = "w500"
	defaultHTTPTimeout = 15 * time.Second
)

// Client is a bearer-token TMDB client. A Client with an empty token is
// disabled: every call short-circuits to upstream.ErrNotConfigured without
// touching the network.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retry      upstream.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBaseURL points the client at a different API root (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetry replaces the retry schedule.
func WithRetry(cfg upstream.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a TMDB client. An empty token yields a disabled client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		// Smaller cap than the catalog client: enrichment is optional work.
		retry: upstream.RetryConfig{MaxRetries: 2, BaseDelay: 2 * time.Second, MaxJitter: 500 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the client has credentials.
func (c *Client) Enabled() bool { return c.token != "" }

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	if !c.Enabled() {
		return upstream.ErrNotConfigured
	}
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	var body []byte
	err := upstream.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)

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
			return &upstream.Retryable{Err: upstream.ErrRateLimited, Wait: retryAfter(resp)}
		}
		if resp.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, resp.Body)
			return upstream.ErrNotFound
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
		return err
	}
	// Tolerate partially-populated payloads: absent fields stay zero.
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", upstream.ErrParse, err)
	}
	return nil
}

// retryAfter reads the Retry-After header in seconds; zero means "use the
// client's own backoff".
func retryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// MovieDetail is a (possibly partial) movie record.
type MovieDetail struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
}

// TVDetail is a (possibly partial) TV show record.
type TVDetail struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
}

// FindMovieByID looks a movie up by its TMDB id.
func (c *Client) FindMovieByID(ctx context.Context, id int64) (*MovieDetail, error) {
	var d MovieDetail
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// FindTVByID looks a TV show up by its TMDB id.
func (c *Client) FindTVByID(ctx context.Context, id int64) (*TVDetail, error) {
	var d TVDetail
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SearchMovie searches by title, optionally narrowed by release year.
// Returns the best (first) match or upstream.ErrNotFound.
func (c *Client) SearchMovie(ctx context.Context, title string, year int) (*MovieDetail, error) {
	params := url.Values{"query": {title}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	var res struct {
		Results []MovieDetail `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", params, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, upstream.ErrNotFound
	}
	return &res.Results[0], nil
}

// SearchTV searches by show name, optionally narrowed by first-air year.
// Returns the best (first) match or upstream.ErrNotFound.
func (c *Client) SearchTV(ctx context.Context, title string, year int) (*TVDetail, error) {
	params := url.Values{"query": {title}}
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}
	var res struct {
		Results []TVDetail `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", params, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, upstream.ErrNotFound
	}
	return &res.Results[0], nil
}

// ImageURL joins a relative TMDB image path with the fixed image base and
// size segment. Empty paths stay empty.
func ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + "/" + imageSize + path
}
