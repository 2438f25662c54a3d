package core

import "time"

// SearchResult is a single extracted row: the uniform record the whole
// pipeline exists to produce.
type SearchResult struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SiteStatus is a per-site state in the Pending→Fetching→Parsing→{Completed|Failed} DAG.
type SiteStatus string

const (
	StatusPending   SiteStatus = "pending"
	StatusFetching  SiteStatus = "fetching"
	StatusParsing   SiteStatus = "parsing"
	StatusCompleted SiteStatus = "completed"
	StatusFailed    SiteStatus = "failed"
)

// SiteProgress is emitted on every state transition for a site within one search.
type SiteProgress struct {
	Site        string     `json:"site"`
	Status      SiteStatus `json:"status"`
	ResultCount int        `json:"results_count"`
	Message     string     `json:"message,omitempty"`
}

// SiteCount is one row of Complete.BySite.
type SiteCount struct {
	Site  string `json:"site"`
	Count int    `json:"count"`
}

// CompleteSummary is the terminal event for a whole search.
type CompleteSummary struct {
	Total     int         `json:"total"`
	BySite    []SiteCount `json:"by_site"`
	ElapsedMs int64       `json:"elapsed_ms"`
	SearchID  string      `json:"search_id"`
}

// EventKind tags which field of Event is populated.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventResult   EventKind = "result"
	EventComplete EventKind = "complete"
)

// Event is the single value type flowing over the event bus; exactly one
// of Progress/Result/Complete is non-nil depending on Kind.
type Event struct {
	Kind     EventKind
	Progress *SiteProgress
	Result   *SearchResult
	Complete *CompleteSummary
}

// Options configures one Search/SearchCollect call.
type Options struct {
	Sites           []string // explicit site selection; empty = all
	InvertSites     bool     // treat Sites as an exclusion set
	PerSiteLimit    int      // default 10 when zero
	GlobalCutoff    int      // 0 = no truncation
	NoCache         bool
	NoSolver        bool
	Cookies         []Cookie
	SolverURLOverride string
	SortTitles      bool // within a site group, sort by title instead of insertion order
}

// Cookie is the subset of cookie fields the solver protocol accepts.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// CacheEntry is one persisted search result set.
type CacheEntry struct {
	QueryKey  string         `json:"query"`
	Results   []SearchResult `json:"results"`
	CreatedAt time.Time      `json:"-"`
	TTL       time.Duration  `json:"-"`
}

// cacheEntryFile is the on-disk JSON shape for CacheEntry (§6 cache file layout).
type cacheEntryFile struct {
	Query            string         `json:"query"`
	Results          []SearchResult `json:"results"`
	CreatedAtUnixSec int64          `json:"created_at_unix_seconds"`
	TTLSeconds       int64          `json:"ttl_seconds"`
}
