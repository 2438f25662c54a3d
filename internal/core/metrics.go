package core

import (
	"fmt"
	"sync/atomic"
)

// counters holds the process-wide atomic metrics exposed via
// FormatMetrics, per §6's "minimal telemetry interface".
var counters struct {
	requestsIssued    atomic.Int64
	requestsFailed    atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	circuitTrips      atomic.Int64
	solverEscalations atomic.Int64
	searchesRun       atomic.Int64
}

func IncrRequestsIssued()    { counters.requestsIssued.Add(1) }
func IncrRequestsFailed()    { counters.requestsFailed.Add(1) }
func IncrCacheHit()          { counters.cacheHits.Add(1) }
func IncrCacheMiss()         { counters.cacheMisses.Add(1) }
func IncrCircuitTrip()       { counters.circuitTrips.Add(1) }
func IncrSolverEscalation()  { counters.solverEscalations.Add(1) }
func IncrSearchesRun()       { counters.searchesRun.Add(1) }

// Metrics is a point-in-time snapshot of the process-wide counters.
type Metrics struct {
	RequestsIssued    int64
	RequestsFailed    int64
	CacheHits         int64
	CacheMisses       int64
	CircuitTrips      int64
	SolverEscalations int64
	SearchesRun       int64
}

// GetMetrics snapshots the current counters.
func GetMetrics() Metrics {
	return Metrics{
		RequestsIssued:    counters.requestsIssued.Load(),
		RequestsFailed:    counters.requestsFailed.Load(),
		CacheHits:         counters.cacheHits.Load(),
		CacheMisses:       counters.cacheMisses.Load(),
		CircuitTrips:      counters.circuitTrips.Load(),
		SolverEscalations: counters.solverEscalations.Load(),
		SearchesRun:       counters.searchesRun.Load(),
	}
}

// FormatMetrics renders the counters as plain text, one "name value" pair
// per line, for a host process to mount behind its own /metrics handler
// (the HTTP surface itself is out of scope here).
func FormatMetrics() string {
	m := GetMetrics()
	return fmt.Sprintf(
		"gamesearch_requests_issued %d\n"+
			"gamesearch_requests_failed %d\n"+
			"gamesearch_cache_hits %d\n"+
			"gamesearch_cache_misses %d\n"+
			"gamesearch_circuit_trips %d\n"+
			"gamesearch_solver_escalations %d\n"+
			"gamesearch_searches_run %d\n",
		m.RequestsIssued, m.RequestsFailed, m.CacheHits, m.CacheMisses,
		m.CircuitTrips, m.SolverEscalations, m.SearchesRun,
	)
}
