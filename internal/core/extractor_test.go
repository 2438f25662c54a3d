package core

import (
	"regexp"
	"testing"
)

func TestExtractQueryParamSite(t *testing.T) {
	d := SiteDescriptor{
		Name:     "freegog",
		BaseURL:  "https://freegogpcgames.com",
		Strategy: StrategyQueryParam,
		Selector: "h2.entry-title a",
	}
	html := `<html><body>
		<article><h2 class="entry-title"><a href="/elden-ring">Elden Ring</a></h2></article>
		<article><h2 class="entry-title"><a href="/hollow-knight">Hollow Knight</a></h2></article>
	</body></html>`

	results, err := Extract(d, html, AdvancedQuery{Terms: []string{"elden"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d: %+v", len(results), results)
	}
	if results[0].URL != "https://freegogpcgames.com/elden-ring" {
		t.Errorf("URL = %q, want resolved absolute URL", results[0].URL)
	}
}

func TestExtractFitGirlQuirkDropsNoise(t *testing.T) {
	d := SiteDescriptor{
		Name:     "fitgirl-repacks",
		BaseURL:  "https://fitgirl-repacks.site",
		Strategy: StrategyQueryParam,
		Selector: "div.missing-wrapper a", // primary selector misses; the quirk carries the real shape
		Quirk:    "fitgirl",
	}
	html := `<html><body>
		<h2 class="entry-title"><a href="/2024-01-01">2024-01-01</a></h2>
		<h2 class="entry-title"><a href="/upcoming">Upcoming Repacks</a></h2>
		<h2 class="entry-title"><a href="/elden-ring">Elden Ring</a></h2>
	</body></html>`

	results, err := Extract(d, html, AdvancedQuery{Terms: []string{"elden"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the date-like and 'upcoming' entries dropped, got %+v", results)
	}
	if results[0].Title != "Elden Ring" {
		t.Errorf("Title = %q", results[0].Title)
	}
}

func TestExtractGenericFallbackOnEmptyPrimary(t *testing.T) {
	d := SiteDescriptor{
		Name:     "gametrex",
		BaseURL:  "https://gametrex.com",
		Strategy: StrategyListingPage,
		Selector: "h2.missing-class a",
	}
	html := `<html><body>
		<a href="/category/action">Action</a>
		<a href="/elden-ring-repack">Elden Ring Repack</a>
	</body></html>`

	results, err := Extract(d, html, AdvancedQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected nav link dropped by navPathRe, got %+v", results)
	}
	if results[0].Title != "Elden Ring Repack" {
		t.Errorf("Title = %q", results[0].Title)
	}
}

func TestTitleFromPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x.com/elden-ring-repack", "elden ring repack"},
		{"https://x.com/123", ""},
		{"https://x.com/game.html", "game"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := titleFromPathSegment(tt.url); got != tt.want {
				t.Errorf("titleFromPathSegment(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFilterCandidatesRegexMatchesTitleOrURL(t *testing.T) {
	candidates := []rawCandidate{
		{Title: "Elden Ring", URL: "https://x.com/er"},
		{Title: "Something Else", URL: "https://x.com/elden-ring-deluxe"},
		{Title: "Unrelated", URL: "https://x.com/other"},
	}
	query := AdvancedQuery{}
	query.RegexPatterns = append(query.RegexPatterns, regexp.MustCompile("(?i)elden"))

	out := filterCandidates(candidates, query, "site")
	if len(out) != 2 {
		t.Fatalf("expected 2 matches (title OR url), got %d: %+v", len(out), out)
	}
}
