package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voyagen/streamvault/internal/upstream"
)

func TestDisabledClientShortCircuits(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	if c.Enabled() {
		t.Fatal("client without token must be disabled")
	}
	_, err := c.SearchTV(context.Background(), "anything", 0)
	if !errors.Is(err, upstream.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if requests != 0 {
		t.Fatalf("requests = %d, want 0", requests)
	}
}

func TestSearchTVReturnsFirstMatch(t *testing.T) {
	var gotQuery, gotYear, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotYear = r.URL.Query().Get("first_air_date_year")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"results":[
			{"id":99,"name":"Deep Space","overview":"crew drifts","vote_average":8.1,"backdrop_path":"/ds.jpg"},
			{"id":100,"name":"Deep Space Redux"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	d, err := c.SearchTV(context.Background(), "Deep Space", 2022)
	if err != nil {
		t.Fatalf("SearchTV: %v", err)
	}
	if d.ID != 99 || d.Overview != "crew drifts" {
		t.Fatalf("detail = %+v", d)
	}
	if gotQuery != "Deep Space" || gotYear != "2022" {
		t.Errorf("query=%q year=%q", gotQuery, gotYear)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestSearchEmptyResultsIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.SearchMovie(context.Background(), "no such film", 0)
	if !errors.Is(err, upstream.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupMissingIDIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.FindTVByID(context.Background(), 12345)
	if !errors.Is(err, upstream.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":7,"title":"Retried"}`)
	}))
	defer srv.Close()

	// A deliberately huge backoff: only a honored Retry-After finishes fast.
	c := NewClient("tok", WithBaseURL(srv.URL),
		WithRetry(upstream.RetryConfig{MaxRetries: 2, BaseDelay: time.Hour, MaxJitter: time.Millisecond}))
	start := time.Now()
	d, err := c.FindMovieByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("FindMovieByID: %v", err)
	}
	if d.Title != "Retried" {
		t.Fatalf("detail = %+v", d)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Retry-After not honored, took %v", elapsed)
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL("/abc.jpg"); got != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Errorf("ImageURL = %q", got)
	}
	if got := ImageURL(""); got != "" {
		t.Errorf("ImageURL(\"\") = %q, want empty", got)
	}
}
