package core

import (
	"strings"
	"testing"
)

func TestBuildURLQueryParam(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://freegogpcgames.com", Strategy: StrategyQueryParam, QueryParam: "s"}
	got, err := BuildURL(d, "elden ring", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://freegogpcgames.com?s=elden+ring"
	if got != want {
		t.Errorf("BuildURL = %q, want %q", got, want)
	}
}

func TestBuildURLPathEncoded(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://example.com/", Strategy: StrategyPathEncoded, Selector: "a"}
	got, err := BuildURL(d, "elden ring", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/elden%20ring"
	if got != want {
		t.Errorf("BuildURL = %q, want %q", got, want)
	}
}

func TestBuildURLFrontPage(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://elamigos.site", Strategy: StrategyFrontPage}
	got, err := BuildURL(d, "ignored", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != d.BaseURL {
		t.Errorf("BuildURL = %q, want base_url unchanged", got)
	}
}

func TestBuildURLListingPagePagination(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://gametrex.com", Strategy: StrategyListingPage, ListingPath: "/category/repack-games"}

	first, err := BuildURL(d, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != "https://gametrex.com/category/repack-games" {
		t.Errorf("page 0 = %q", first)
	}

	second, err := BuildURL(d, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != "https://gametrex.com/category/repack-games?page=2" {
		t.Errorf("page 1 = %q", second)
	}
}

func TestBuildURLForumSearch(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://gog-games.to/forum", Strategy: StrategyForumSearch, ForumIDs: []string{"2", "35"}}
	got, err := BuildURL(d, "elden ring", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://gog-games.to/forum/search.php?fid%5B%5D=2&fid%5B%5D=35&keywords=elden+ring&sr=topics&terms=all" {
		t.Errorf("unexpected forum search URL: %q", got)
	}
}

func TestBuildListingURLForumPagination(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://gog-games.to/forum", Strategy: StrategyForumSearch}
	u, err := BuildListingURL(d, "elden ring", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(u, "start=200") {
		t.Errorf("expected start=200 offset in %q", u)
	}
}

func TestBuildURLUnknownStrategy(t *testing.T) {
	d := SiteDescriptor{BaseURL: "https://x.com", Strategy: Strategy("nonsense")}
	_, err := BuildURL(d, "q", 0)
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
