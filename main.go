// gamesearch — federated game-repack site search.
//
// Queries a catalog of known sites in parallel, normalizes and dedups the
// results, and prints them as JSON. Argument parsing beyond the bare query
// string, an interactive shell, and any network-facing API surface are
// intentionally not part of this entry point; see internal/core for the
// library surface a host process would embed instead.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kdpw/gamesearch/internal/core"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gamesearch <query>")
		os.Exit(1)
	}
	query := strings.Join(os.Args[1:], " ")

	initCore()

	searcher, err := core.NewSearcherFromEnv()
	if err != nil {
		logger.Error("searcher init failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("starting gamesearch", slog.String("version", version), slog.String("query", query))

	results, err := searcher.SearchCollect(ctx, query, core.Options{})
	if err != nil {
		logger.Error("search failed", slog.Any("error", err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("encode failed", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Fprint(os.Stderr, core.FormatMetrics())
}

func initCore() {
	c := core.Config{
		CatalogPath:         env("CATALOG_PATH", "sites.yaml"),
		SolverURL:           env("SOLVER_URL", ""),
		SolverTimeout:       envDuration("SOLVER_TIMEOUT", 20*time.Second),
		BrowserHelperPath:   env("BROWSER_HELPER_PATH", "browser-helper"),
		FetchTimeout:        envDuration("FETCH_TIMEOUT", 15*time.Second),
		RetryAttempts:       envInt("RETRY_ATTEMPTS", 3),
		RateLimitBaseDelay:  envDuration("RATE_LIMIT_BASE_DELAY", 500*time.Millisecond),
		RateLimitMaxDelay:   envDuration("RATE_LIMIT_MAX_DELAY", 8*time.Second),
		RateLimitMultiplier: envFloat("RATE_LIMIT_MULTIPLIER", 2.0),
		CircuitMaxFailures:  envInt("CIRCUIT_MAX_FAILURES", 3),
		CircuitCoolOff:      envDuration("CIRCUIT_COOL_OFF", 60*time.Second),
		DefaultPerSiteLimit: envInt("DEFAULT_PER_SITE_LIMIT", 10),
		MaxListingPages:     envInt("MAX_LISTING_PAGES", 5),
		CacheDir:            env("CACHE_PATH", ""),
		CacheMaxEntries:     envInt("CACHE_MAX_ENTRIES", 10),
		CacheDefaultTTL:     envDuration("CACHE_DEFAULT_TTL", 12*time.Hour),
		ConcurrencyLimit:    int64(envInt("CONCURRENCY_LIMIT", 3)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := core.NewBrowserClient()
	if err != nil {
		slog.Warn("browser client init failed, falling back to plain HTTP", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	core.Init(c)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}
