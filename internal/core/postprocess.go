package core

import (
	"regexp"
	"sort"
	"strings"
)

var (
	collapseWhitespaceRe = regexp.MustCompile(`\s+`)
	bracketOnlyRe        = regexp.MustCompile(`^[\[\(\{][^\[\]\(\)\{\}]*[\]\)\}]$`)
)

// noiseTokens are site-specific title suffixes stripped during
// normalization (§4.8 step 1).
var noiseTokens = []string{"- repack", "- repacks", "[repack]", "(repack)"}

// NormalizeTitle collapses whitespace, trims, strips a single bracket pair
// that encloses the whole title, and strips trailing separators/noise tokens.
func NormalizeTitle(title string) string {
	t := collapseWhitespaceRe.ReplaceAllString(title, " ")
	t = strings.TrimSpace(t)
	if bracketOnlyRe.MatchString(t) {
		t = strings.Trim(t, "[](){} ")
	}
	lower := strings.ToLower(t)
	for _, noise := range noiseTokens {
		if strings.HasSuffix(lower, noise) {
			t = strings.TrimSpace(t[:len(t)-len(noise)])
			lower = strings.ToLower(t)
		}
	}
	t = strings.TrimRight(t, " -–—:|")
	return strings.TrimSpace(t)
}

// PostProcess runs §4.8 over one search's full candidate set: normalize,
// dedup by (site,url) keeping the longer title, per-site limit,
// group-by-site ordering, then global cutoff.
func PostProcess(results []SearchResult, perSiteLimit, globalCutoff int, sortTitles bool) []SearchResult {
	if perSiteLimit <= 0 {
		perSiteLimit = 10
	}

	normalized := normalizeAll(results)
	deduped := dedupBySiteURL(normalized)
	limited := applyPerSiteLimit(deduped, perSiteLimit)
	ordered := orderBySite(limited, sortTitles)

	if globalCutoff > 0 && len(ordered) > globalCutoff {
		ordered = ordered[:globalCutoff]
	}
	return ordered
}

func normalizeAll(results []SearchResult) []SearchResult {
	normalized := make([]SearchResult, len(results))
	for i, r := range results {
		normalized[i] = SearchResult{Site: r.Site, Title: NormalizeTitle(r.Title), URL: r.URL}
	}
	return normalized
}

// PostProcessSite runs the orchestrator's step-e per-site pass (§4.10.4.e):
// normalize, dedup, per-site limit — no cross-site ordering or cutoff yet.
func PostProcessSite(results []SearchResult, perSiteLimit int) []SearchResult {
	if perSiteLimit <= 0 {
		perSiteLimit = 10
	}
	normalized := normalizeAll(results)
	deduped := dedupBySiteURL(normalized)
	return applyPerSiteLimit(deduped, perSiteLimit)
}

// PostProcessFinal runs the aggregator's merge pass (§4.10.5): a safety
// re-dedup across merged per-site outputs, group-by-site ordering, then
// global cutoff.
func PostProcessFinal(merged []SearchResult, globalCutoff int, sortTitles bool) []SearchResult {
	deduped := dedupBySiteURL(merged)
	ordered := orderBySite(deduped, sortTitles)
	if globalCutoff > 0 && len(ordered) > globalCutoff {
		ordered = ordered[:globalCutoff]
	}
	return ordered
}

// dedupBySiteURL keeps, for each (site,url) pair, the variant with the
// longer title, preserving first-seen order otherwise.
func dedupBySiteURL(results []SearchResult) []SearchResult {
	type key struct{ site, url string }
	index := make(map[key]int, len(results))
	var out []SearchResult
	for _, r := range results {
		k := key{r.Site, r.URL}
		if i, ok := index[k]; ok {
			if len(r.Title) > len(out[i].Title) {
				out[i].Title = r.Title
			}
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func applyPerSiteLimit(results []SearchResult, limit int) []SearchResult {
	counts := make(map[string]int)
	var out []SearchResult
	for _, r := range results {
		if counts[r.Site] >= limit {
			continue
		}
		counts[r.Site]++
		out = append(out, r)
	}
	return out
}

// orderBySite groups results by site (case-insensitive alphabetical);
// within a group, extractor insertion order is preserved unless
// sortTitles requests alphabetical-by-title ordering instead.
func orderBySite(results []SearchResult, sortTitles bool) []SearchResult {
	siteOrder := make([]string, 0)
	seen := make(map[string]bool)
	bySite := make(map[string][]SearchResult)
	for _, r := range results {
		key := strings.ToLower(r.Site)
		if !seen[key] {
			seen[key] = true
			siteOrder = append(siteOrder, key)
		}
		bySite[key] = append(bySite[key], r)
	}
	sort.Strings(siteOrder)

	out := make([]SearchResult, 0, len(results))
	for _, key := range siteOrder {
		group := bySite[key]
		if sortTitles {
			sort.SliceStable(group, func(i, j int) bool {
				return strings.ToLower(group[i].Title) < strings.ToLower(group[j].Title)
			})
		}
		out = append(out, group...)
	}
	return out
}
