package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"cloudflare challenge", "<html>Just a moment...</html>", true},
		{"cf verification marker", `<div class="cf-browser-verification"></div>`, true},
		{"plain page", "<html><body>hello</body></html>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksBlocked(tt.body); got != tt.want {
				t.Errorf("looksBlocked(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func newTestFetcher() *Fetcher {
	Init(Config{})
	return NewFetcher(NewRateLimiter(), nil)
}

func TestFetcherDirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok body"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	attempted := false
	body, err := f.Fetch(context.Background(), SiteDescriptor{Name: "test"}, srv.URL, nil, true, &attempted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "ok body" {
		t.Errorf("body = %q, want %q", body, "ok body")
	}
}

func TestFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	attempted := false
	_, err := f.Fetch(context.Background(), SiteDescriptor{Name: "test"}, srv.URL, nil, true, &attempted)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetcherBlockedWithoutSolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher()
	attempted := false
	_, err := f.Fetch(context.Background(), SiteDescriptor{Name: "test"}, srv.URL, nil, true, &attempted)
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("expected ErrBlocked, got %v", err)
	}
}

func TestFetcherRetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	attempted := false
	body, err := f.Fetch(context.Background(), SiteDescriptor{Name: "test", RetryAttempts: 5}, srv.URL, nil, true, &attempted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "recovered" {
		t.Errorf("body = %q, want %q", body, "recovered")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("too slow"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	attempted := false
	_, err := f.Fetch(context.Background(), SiteDescriptor{Name: "test", Timeout: 5 * time.Millisecond, RetryAttempts: 1}, srv.URL, nil, true, &attempted)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
