package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Searcher owns the shared, process-wide resources a search draws on:
// the site catalog, the rate limiter map, the fetcher, and the cache.
// One Searcher is built at process startup and reused across calls.
type Searcher struct {
	catalog *Catalog
	limiter *RateLimiter
	fetcher *Fetcher
	cache   *Cache
}

// NewSearcher wires the core's components together.
func NewSearcher(catalog *Catalog, cache *Cache) *Searcher {
	limiter := NewRateLimiter()
	solver := NewSolverClient(Cfg.SolverURL, Cfg.SolverTimeout)
	return &Searcher{
		catalog: catalog,
		limiter: limiter,
		fetcher: NewFetcher(limiter, solver),
		cache:   cache,
	}
}

// NewSearcherFromEnv builds a fully configured Searcher from the
// already-Init'd Cfg, mirroring the donor's NewFromEnv construction idiom:
// load the catalog from Cfg.CatalogPath and the cache from Cfg.CacheDir,
// without the caller hand-assembling every sub-component.
func NewSearcherFromEnv() (*Searcher, error) {
	catalog, err := LoadCatalog(Cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	cachePath := Cfg.CacheDir
	if cachePath == "" {
		cachePath = DefaultCachePath()
	}
	cache := NewCache(cachePath, Cfg.CacheMaxEntries, Cfg.CacheDefaultTTL)
	return NewSearcher(catalog, cache), nil
}

// Search is the single core entry point: §6's
// `search(query, options) → Stream<Event>`. It returns immediately with a
// channel that receives Progress/Result/Complete events and closes when
// the search is done; only InvalidQuery/ConfigError are returned
// synchronously (they abort before any site task starts).
func (s *Searcher) Search(ctx context.Context, rawQuery string, opts Options) (<-chan Event, error) {
	query, err := ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	searchID := uuid.NewString()
	start := time.Now()
	IncrSearchesRun()
	slog.Info("search started", slog.String("search_id", searchID), slog.String("query_hash", queryCacheKeyHash(rawQuery)))

	bus := NewBus()
	out := bus.Subscribe()

	cacheKey := NormalizeQueryKey(rawQuery)
	if !opts.NoCache && s.cache != nil {
		if entry, ok := s.cache.Get(cacheKey); ok {
			IncrCacheHit()
			go s.emitCachedResult(bus, entry, searchID, start)
			return out, nil
		}
		IncrCacheMiss()
	}

	sites, unknown := s.catalog.Select(opts.Sites, opts.InvertSites)
	for _, name := range unknown {
		slog.Warn("unknown site requested", slog.String("site", name))
	}

	go s.run(ctx, bus, sites, query, opts, cacheKey, searchID, start)
	return out, nil
}

func (s *Searcher) emitCachedResult(bus *Bus, entry CacheEntry, searchID string, start time.Time) {
	bySite := make(map[string]int)
	for _, r := range entry.Results {
		bus.PublishResult(r)
		bySite[r.Site]++
	}
	bus.PublishComplete(CompleteSummary{
		Total:     len(entry.Results),
		BySite:    toSiteCounts(bySite),
		ElapsedMs: time.Since(start).Milliseconds(),
		SearchID:  searchID,
	})
}

// siteOutcome is what one site task hands back to the aggregator.
type siteOutcome struct {
	site    string
	results []SearchResult
}

func (s *Searcher) run(ctx context.Context, bus *Bus, sites []SiteDescriptor, query AdvancedQuery, opts Options, cacheKey, searchID string, start time.Time) {
	perSiteLimit := opts.PerSiteLimit
	if perSiteLimit <= 0 {
		perSiteLimit = Cfg.DefaultPerSiteLimit
	}

	concurrency := Cfg.ConcurrencyLimit
	if concurrency <= 0 {
		concurrency = 3
	}
	sem := semaphore.NewWeighted(concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var merged []SearchResult
	bySite := make(map[string]int)

	for _, d := range sites {
		bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusPending})
	}

	for _, d := range sites {
		segs := SegmentsForSite(d.Name, query.Segments)
		if len(segs) == 0 {
			continue
		}
		wg.Add(1)
		go func(d SiteDescriptor, segs []AdvancedQuery) {
			defer wg.Done()
			outcome := s.runSite(ctx, bus, sem, d, segs, opts, perSiteLimit)
			mu.Lock()
			merged = append(merged, outcome.results...)
			bySite[outcome.site] += len(outcome.results)
			mu.Unlock()
		}(d, segs)
	}

	wg.Wait()

	final := PostProcessFinal(merged, opts.GlobalCutoff, opts.SortTitles)

	if ctx.Err() == nil && len(final) > 0 && !opts.NoCache && s.cache != nil {
		s.cache.Put(cacheKey, final)
	}

	finalBySite := make(map[string]int)
	for _, r := range final {
		finalBySite[r.Site]++
	}

	bus.PublishComplete(CompleteSummary{
		Total:     len(final),
		BySite:    toSiteCounts(finalBySite),
		ElapsedMs: time.Since(start).Milliseconds(),
		SearchID:  searchID,
	})
	slog.Info("search completed", slog.String("search_id", searchID), slog.Int("results", len(final)), slog.Duration("elapsed", time.Since(start)))
}

// runSite drives one site task through §4.10 step 4: Fetching → rate-limit
// gate/circuit → per-segment fetch+extract → Parsing → per-site
// post-process → Completed, publishing its own results onto the bus as
// they're finalized.
func (s *Searcher) runSite(ctx context.Context, bus *Bus, sem *semaphore.Weighted, d SiteDescriptor, segs []AdvancedQuery, opts Options, perSiteLimit int) siteOutcome {
	bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFetching})

	if err := sem.Acquire(ctx, 1); err != nil {
		bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFailed, Message: ErrCancelled.Error()})
		return siteOutcome{site: d.Name}
	}
	defer sem.Release(1)

	if err := s.limiter.Gate(ctx, d); err != nil {
		if ctx.Err() != nil {
			bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFailed, Message: ErrCancelled.Error()})
		} else {
			IncrCircuitTrip()
			bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFailed, Message: err.Error()})
		}
		return siteOutcome{site: d.Name}
	}

	// ListingPage/ForumSearch descriptors page forward (§9's
	// max_listing_pages resolution) when a page yields no candidates;
	// every other strategy's URL is page-invariant, so one page suffices.
	maxPages := 1
	if d.Strategy == StrategyListingPage || d.Strategy == StrategyForumSearch {
		maxPages = Cfg.MaxListingPages
		if maxPages <= 0 {
			maxPages = 1
		}
	}

	var candidates []SearchResult
	solverAttempted := false
	for _, seg := range segs {
		if ctx.Err() != nil {
			break
		}

		var segRows []SearchResult
		for page := 0; page < maxPages; page++ {
			url, err := BuildListingURL(d, seg.NetworkQuery(), page)
			if err != nil {
				break
			}
			IncrRequestsIssued()
			body, err := s.fetcher.Fetch(ctx, d, url, opts.Cookies, opts.NoSolver, &solverAttempted)
			if err != nil {
				IncrRequestsFailed()
				s.limiter.RecordFailure(d)
				bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFailed, Message: err.Error()})
				return siteOutcome{site: d.Name}
			}
			s.limiter.RecordSuccess(d)
			if solverAttempted {
				IncrSolverEscalation()
			}

			rows, err := Extract(d, body, seg)
			if err != nil {
				bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusFailed, Message: err.Error()})
				return siteOutcome{site: d.Name}
			}
			if len(rows) > 0 {
				segRows = rows
				break
			}
		}
		candidates = append(candidates, segRows...)
	}

	bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusParsing})

	processed := PostProcessSite(candidates, perSiteLimit)
	for _, r := range processed {
		bus.PublishResult(r)
	}

	bus.PublishProgress(SiteProgress{Site: d.Name, Status: StatusCompleted, ResultCount: len(processed)})
	return siteOutcome{site: d.Name, results: processed}
}

func toSiteCounts(bySite map[string]int) []SiteCount {
	out := make([]SiteCount, 0, len(bySite))
	for site, count := range bySite {
		out = append(out, SiteCount{Site: site, Count: count})
	}
	return out
}

// SearchCollect is the synchronous convenience wrapper: §6's
// `search_collect(query, options) → [SearchResult]`. It drains the event
// stream and returns only the final result set: the streamed rows run
// through PostProcessFinal (dedup, group-by-site ordering, global cutoff).
func (s *Searcher) SearchCollect(ctx context.Context, query string, opts Options) ([]SearchResult, error) {
	events, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for ev := range events {
		switch ev.Kind {
		case EventResult:
			results = append(results, *ev.Result)
		case EventComplete:
			return PostProcessFinal(results, opts.GlobalCutoff, opts.SortTitles), nil
		}
	}
	return PostProcessFinal(results, opts.GlobalCutoff, opts.SortTitles), nil
}
