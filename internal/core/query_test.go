package core

import (
	"errors"
	"testing"
)

func TestParseQueryEmpty(t *testing.T) {
	tests := []string{"", "   ", "site:fitgirl", "-exclude regex:only"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseQuery(raw)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("ParseQuery(%q) error = %v, want ErrInvalidQuery", raw, err)
			}
		})
	}
}

func TestParseQueryBasicTerms(t *testing.T) {
	q, err := ParseQuery("elden ring")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Terms) != 2 || q.Terms[0] != "elden" || q.Terms[1] != "ring" {
		t.Errorf("Terms = %v, want [elden ring]", q.Terms)
	}
}

func TestParseQueryExactPhrase(t *testing.T) {
	q, err := ParseQuery(`"Elden Ring" deluxe`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.ExactPhrases) != 1 || q.ExactPhrases[0] != "elden ring" {
		t.Errorf("ExactPhrases = %v, want [elden ring]", q.ExactPhrases)
	}
	if len(q.Terms) != 1 || q.Terms[0] != "deluxe" {
		t.Errorf("Terms = %v, want [deluxe]", q.Terms)
	}
}

func TestParseQuerySiteRestriction(t *testing.T) {
	q, err := ParseQuery("elden ring site:fitgirl-repacks,elamigos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"fitgirl-repacks", "elamigos"}
	if len(q.SiteRestrictions) != len(want) {
		t.Fatalf("SiteRestrictions = %v, want %v", q.SiteRestrictions, want)
	}
	for i, s := range want {
		if q.SiteRestrictions[i] != s {
			t.Errorf("SiteRestrictions[%d] = %q, want %q", i, q.SiteRestrictions[i], s)
		}
	}
}

func TestParseQueryExcludeAndRegex(t *testing.T) {
	q, err := ParseQuery("ring -demo regex:^Elden.*$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.ExcludeTerms) != 1 || q.ExcludeTerms[0] != "demo" {
		t.Errorf("ExcludeTerms = %v, want [demo]", q.ExcludeTerms)
	}
	if len(q.RegexPatterns) != 1 {
		t.Fatalf("expected 1 compiled pattern, got %d", len(q.RegexPatterns))
	}
	if !q.RegexPatterns[0].MatchString("Elden Ring Deluxe") {
		t.Error("expected pattern to match")
	}
}

func TestParseQueryInvalidRegexDropped(t *testing.T) {
	q, err := ParseQuery("ring regex:(unclosed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.RegexPatterns) != 0 {
		t.Errorf("expected invalid regex to be silently dropped, got %d patterns", len(q.RegexPatterns))
	}
}

func TestParseQuerySegments(t *testing.T) {
	q, err := ParseQuery("elden ring | hollow knight site:elamigos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(q.Segments))
	}
	if q.Segments[1].SiteRestrictions[0] != "elamigos" {
		t.Errorf("segment 1 site restriction = %v", q.Segments[1].SiteRestrictions)
	}
}

func TestSegmentsForSite(t *testing.T) {
	segs := []AdvancedQuery{
		{Terms: []string{"unrestricted"}},
		{Terms: []string{"fitgirl-only"}, SiteRestrictions: []string{"fitgirl-repacks"}},
		{Terms: []string{"elamigos-only"}, SiteRestrictions: []string{"elamigos"}},
	}

	got := SegmentsForSite("fitgirl-repacks", segs)
	if len(got) != 2 {
		t.Fatalf("expected 2 applicable segments, got %d", len(got))
	}
	got = SegmentsForSite("elamigos", segs)
	if len(got) != 2 {
		t.Fatalf("expected 2 applicable segments, got %d", len(got))
	}
	got = SegmentsForSite("unknown-site", segs)
	if len(got) != 1 {
		t.Fatalf("expected 1 applicable (unrestricted) segment, got %d", len(got))
	}
}

func TestNormalizeQueryKeyIdempotent(t *testing.T) {
	raw := `  Elden  Ring   site:fitgirl-repacks -demo  `
	k1 := NormalizeQueryKey(raw)
	k2 := NormalizeQueryKey(k1)
	if k1 != k2 {
		t.Errorf("NormalizeQueryKey not idempotent: %q != %q", k1, k2)
	}
}

func TestNormalizeQueryKeyEquivalence(t *testing.T) {
	a := NormalizeQueryKey("Elden Ring site:fitgirl")
	b := NormalizeQueryKey("elden  ring  site:fitgirl")
	if a != b {
		t.Errorf("expected equal cache keys, got %q and %q", a, b)
	}
}

func TestNetworkQueryExcludesOperators(t *testing.T) {
	q, err := ParseQuery(`elden ring "game of the year" -demo site:fitgirl regex:^E`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nq := q.NetworkQuery()
	if nq != "elden ring game of the year" {
		t.Errorf("NetworkQuery() = %q, want %q", nq, "elden ring game of the year")
	}
}
