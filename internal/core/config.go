package core

import (
	"net/http"
	"time"
)

// Config holds all core configuration, injected from the process entry point.
type Config struct {
	CatalogPath          string
	SolverURL            string
	SolverTimeout        time.Duration
	BrowserHelperPath    string
	FetchTimeout         time.Duration
	RetryAttempts        int
	RateLimitBaseDelay   time.Duration
	RateLimitMaxDelay    time.Duration
	RateLimitMultiplier  float64
	CircuitMaxFailures   int
	CircuitCoolOff       time.Duration
	DefaultPerSiteLimit  int
	MaxListingPages      int
	CacheDir             string
	CacheMaxEntries      int
	CacheDefaultTTL      time.Duration
	ConcurrencyLimit     int64
	HTTPClient           *http.Client
	BrowserClient        *BrowserClient // nil disables solver-adjacent Chrome-fingerprinted fetches
}

var cfg Config

// Cfg exposes the current core configuration.
var Cfg = &cfg

// Init installs the process-wide configuration. Must be called once at
// startup before any Search/SearchCollect call.
func Init(c Config) {
	if c.DefaultPerSiteLimit == 0 {
		c.DefaultPerSiteLimit = 10
	}
	if c.MaxListingPages == 0 {
		c.MaxListingPages = 5
	}
	if c.ConcurrencyLimit == 0 {
		c.ConcurrencyLimit = 3
	}
	if c.RateLimitMultiplier == 0 {
		c.RateLimitMultiplier = 2.0
	}
	if c.CircuitMaxFailures == 0 {
		c.CircuitMaxFailures = 3
	}
	if c.CircuitCoolOff == 0 {
		c.CircuitCoolOff = 60 * time.Second
	}
	if c.CacheDefaultTTL == 0 {
		c.CacheDefaultTTL = 12 * time.Hour
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = 10
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	cfg = c
	Cfg = &cfg
}
