package proxy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voyagen/streamvault/internal/cache"
)

func newTestProxy() *Proxy {
	return New(cache.NewByteCache(time.Minute), nil)
}

func TestProxyCachesSuccessfulFetch(t *testing.T) {
	fetches := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "video/mp2t")
		fmt.Fprint(w, "segment-bytes")
	}))
	defer upstream.Close()

	p := newTestProxy()
	target := upstream.URL + "/seg1.ts"

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/proxy?url="+target, nil)
		p.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if got := rec.Body.String(); got != "segment-bytes" {
			t.Fatalf("request %d: body = %q", i, got)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
			t.Fatalf("request %d: content type = %q", i, ct)
		}
	}
	if fetches != 1 {
		t.Fatalf("upstream fetches = %d, want 1 (cache must absorb repeats)", fetches)
	}
}

func TestProxyDoesNotCacheErrors(t *testing.T) {
	fetches := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	p := newTestProxy()
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/proxy?url="+upstream.URL+"/gone.ts", nil)
		p.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	}
	if fetches != 2 {
		t.Fatalf("fetches = %d, want 2 (errors are not cached)", fetches)
	}
}

func TestProxyRejectsBadURLs(t *testing.T) {
	p := newTestProxy()
	for _, raw := range []string{"", "ftp://host/file", "not-a-url"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/proxy?url="+raw, nil)
		p.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("url %q: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestContentTypeBySuffix(t *testing.T) {
	cases := map[string]string{
		"http://h/a.ts":        "video/mp2t",
		"http://h/a.m3u8":      "application/vnd.apple.mpegurl",
		"http://h/a.mp4":       "video/mp4",
		"http://h/poster.jpg":  "image/jpeg",
		"http://h/poster.png":  "image/png",
		"http://h/feed.xml":    "application/xml",
		"http://h/data.json":   "application/json",
		"http://h/mystery.bin": "",
	}
	for rawURL, want := range cases {
		if got := contentTypeFor(rawURL); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", rawURL, got, want)
		}
	}
}

func TestProxyUsesSuffixWhenUpstreamOmitsContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress the default content type detection.
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "#EXTM3U")
	}))
	defer upstream.Close()

	p := newTestProxy()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+upstream.URL+"/list.m3u8", nil)
	p.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestProxySuffixOutranksUpstreamContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "segment-bytes")
	}))
	defer upstream.Close()

	p := newTestProxy()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+upstream.URL+"/seg1.ts", nil)
	p.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
		t.Fatalf("content type = %q, want video/mp2t", ct)
	}
}

func TestProxyDefaultsToOctetStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "mystery")
	}))
	defer upstream.Close()

	p := newTestProxy()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+upstream.URL+"/mystery.bin", nil)
	p.ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content type = %q, want application/octet-stream", ct)
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	if cacheKey("http://h/a.ts") != cacheKey("http://h/a.ts") {
		t.Fatal("same url must hash to the same key")
	}
	if cacheKey("http://h/a.ts") == cacheKey("http://h/b.ts") {
		t.Fatal("different urls must not collide")
	}
}
