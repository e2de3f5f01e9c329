// Package proxy relays stream segments, playlists, and artwork from upstream
// portals through a process-local TTL cache, so a burst of identical requests
// costs one upstream fetch.
package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/metrics"
	"github.com/voyagen/streamvault/internal/upstream"
)

const (
	maxRedirects = 10
	maxBodyBytes = 32 << 20
)

type fetched struct {
	data        []byte
	contentType string
}

// Proxy fetches remote resources through a circuit breaker and caches the
// bodies of successful responses.
type Proxy struct {
	cache   *cache.ByteCache
	log     *logrus.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[fetched]
}

// New builds a Proxy over the given byte cache. The circuit breaker opens
// after five consecutive upstream failures and probes again after 30 seconds.
func New(c *cache.ByteCache, log *logrus.Logger) *Proxy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Proxy{
		cache: c,
		log:   log,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
	p.breaker = gobreaker.NewCircuitBreaker[fetched](gobreaker.Settings{
		Name:    "proxy-upstream",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
				Warn("proxy circuit state changed")
		},
	})
	return p
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// contentTypeFor maps a URL's path extension to a media type. It returns ""
// for unrecognized extensions; portals routinely mislabel segment responses,
// so a known extension outranks whatever header the upstream sends.
func contentTypeFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".ts":
		return "video/mp2t"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	default:
		return ""
	}
}

// Fetch returns the resource body and content type, from cache when a live
// entry exists. Only successful non-empty responses are cached.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	key := cacheKey(rawURL)
	if data, ct, ok := p.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues("proxy").Inc()
		return data, ct, nil
	}
	metrics.CacheMisses.WithLabelValues("proxy").Inc()

	res, err := p.breaker.Execute(func() (fetched, error) {
		return p.fetch(ctx, rawURL)
	})
	if err != nil {
		return nil, "", err
	}
	if len(res.data) > 0 {
		p.cache.Set(key, res.data, res.contentType)
	}
	return res.data, res.contentType, nil
}

func (p *Proxy) fetch(ctx context.Context, rawURL string) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetched{}, &upstream.TransportError{Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fetched{}, &upstream.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetched{}, &upstream.HTTPError{Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fetched{}, &upstream.TransportError{Err: err}
	}
	ct := contentTypeFor(rawURL)
	if ct == "" {
		ct = resp.Header.Get("Content-Type")
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return fetched{data: data, contentType: ct}, nil
}

// ServeHTTP handles GET /proxy?url=...
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}

	data, ct, err := p.Fetch(r.Context(), rawURL)
	if err != nil {
		p.log.WithError(err).WithField("url", rawURL).Warn("proxy fetch failed")
		var httpErr *upstream.HTTPError
		switch {
		case errors.As(err, &httpErr):
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		}
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
