package core

import (
	"strings"
	"testing"
)

func TestFormatMetricsIncludesAllCounters(t *testing.T) {
	before := GetMetrics()
	IncrRequestsIssued()
	IncrCacheHit()
	IncrSearchesRun()

	out := FormatMetrics()
	for _, name := range []string{
		"gamesearch_requests_issued",
		"gamesearch_requests_failed",
		"gamesearch_cache_hits",
		"gamesearch_cache_misses",
		"gamesearch_circuit_trips",
		"gamesearch_solver_escalations",
		"gamesearch_searches_run",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("FormatMetrics() missing counter %q in:\n%s", name, out)
		}
	}

	after := GetMetrics()
	if after.RequestsIssued != before.RequestsIssued+1 {
		t.Errorf("RequestsIssued = %d, want %d", after.RequestsIssued, before.RequestsIssued+1)
	}
	if after.SearchesRun != before.SearchesRun+1 {
		t.Errorf("SearchesRun = %d, want %d", after.SearchesRun, before.SearchesRun+1)
	}
}
