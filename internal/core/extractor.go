package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rawCandidate is a title/url pair before the §4.7 step-4 filtering pass.
type rawCandidate struct {
	Title string
	URL   string
}

// Extract runs the full pipeline in §4.7: parse, primary selector, site
// idiosyncrasy/generic fallback, then filter against the query's terms,
// exact phrases, exclude terms, and regex patterns.
func Extract(d SiteDescriptor, html string, query AdvancedQuery) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", d.Name, err)
	}

	candidates := extractPrimary(doc, d)

	needsFallback := d.Strategy == StrategyFrontPage || d.Strategy == StrategyListingPage || len(candidates) == 0
	if needsFallback {
		if quirked := applyQuirk(doc, d); len(quirked) > 0 {
			candidates = append(candidates, quirked...)
		}
		if len(candidates) == 0 {
			candidates = append(candidates, genericFallback(doc, d.BaseURL)...)
		}
	}

	return filterCandidates(candidates, query, d.Name), nil
}

func extractPrimary(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	if d.Selector == "" {
		return nil
	}
	var out []rawCandidate
	doc.Find(d.Selector).Each(func(_ int, sel *goquery.Selection) {
		if c, ok := candidateFromSelection(sel, d); ok {
			out = append(out, c)
		}
	})
	if len(out) == 0 {
		for _, fb := range d.FallbackSelectors {
			doc.Find(fb).Each(func(_ int, sel *goquery.Selection) {
				if c, ok := candidateFromSelection(sel, d); ok {
					out = append(out, c)
				}
			})
			if len(out) > 0 {
				break
			}
		}
	}
	return out
}

// candidateFromSelection reads title/url from one matched node, resolving
// a relative url against the site's base.
func candidateFromSelection(sel *goquery.Selection, d SiteDescriptor) (rawCandidate, bool) {
	node := sel
	if goquery.NodeName(sel) != "a" {
		if a := sel.Find("a").First(); a.Length() > 0 {
			node = a
		}
	}

	href, ok := node.Attr(d.URLAttr)
	if !ok || href == "" {
		return rawCandidate{}, false
	}
	absURL, err := resolveURL(d.BaseURL, href)
	if err != nil {
		return rawCandidate{}, false
	}

	var title string
	if d.TitleSource == "" || d.TitleSource == "text" {
		title = strings.TrimSpace(sel.Text())
	} else if v, ok := sel.Attr(d.TitleSource); ok {
		title = strings.TrimSpace(v)
	}
	if title == "" {
		title = strings.TrimSpace(node.Text())
	}
	if title == "" {
		title = titleFromPathSegment(absURL)
	}
	return rawCandidate{Title: title, URL: absURL}, true
}

func resolveURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	resolved := baseURL.ResolveReference(refURL)
	if resolved.Scheme == "" || resolved.Host == "" {
		return "", fmt.Errorf("unresolvable url %q against base %q", href, base)
	}
	return resolved.String(), nil
}

// navPathRe matches common non-content navigation link paths, used by the
// generic fallback and the steamrip/WP quirk to drop menu chrome.
var navPathRe = regexp.MustCompile(`(?i)/(category|tag|tags|page|author|forums|login|register|wp-json|feed)(/|$)`)

// datelikeRe matches FitGirl's "YYYY-MM-DD"-shaped noise titles.
var datelikeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// applyQuirk dispatches to a named per-site idiosyncrasy extraction
// function, per §4.7's "Per-site idiosyncrasies" table.
func applyQuirk(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	switch d.Quirk {
	case "fitgirl":
		return quirkFitGirl(doc, d)
	case "elamigos":
		return quirkElAmigos(doc, d)
	case "ankergames":
		return quirkAnkergames(doc, d)
	case "phpbb":
		return quirkPhpBB(doc, d)
	case "f95":
		return quirkF95(doc, d)
	case "steamrip_wp":
		return quirkSteamripWP(doc, d)
	default:
		return nil
	}
}

// quirkFitGirl prefers h2.entry-title a, dropping date-like and
// navigational noise titles ("Upcoming repacks", "Page 2", ...).
func quirkFitGirl(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	doc.Find("h2.entry-title a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" || datelikeRe.MatchString(title) {
			return
		}
		lower := strings.ToLower(title)
		if strings.Contains(lower, "upcoming repacks") || strings.HasPrefix(lower, "page ") {
			return
		}
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil {
			return
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

// quirkElAmigos handles headings whose anchor carries the url but whose
// visible text may be decorative; resolve the link via the nested <a>.
func quirkElAmigos(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	doc.Find("h2").Each(func(_ int, h *goquery.Selection) {
		a := h.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = strings.TrimSpace(h.Text())
		}
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil {
			return
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

// quirkAnkergames prefers a[href^='/game/']; falls through to a listing
// scan of every anchor when no /game/ links are present.
func quirkAnkergames(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	doc.Find("a[href^='/game/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := strings.TrimSpace(a.Text())
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil {
			return
		}
		if title == "" {
			title = titleFromPathSegment(absURL)
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	if len(out) > 0 {
		return out
	}
	return genericFallback(doc, d.BaseURL)
}

// quirkPhpBB prefers anchors of class topictitle; URLs are relative with
// a query string that must be preserved (resolveURL keeps it as-is).
func quirkPhpBB(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	doc.Find("a.topictitle").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(a.Text())
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil || title == "" {
			return
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

// quirkF95 matches a[href*='/threads/'], dedups by URL, and drops
// navigation anchors (/forums/, /login/).
func quirkF95(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	seen := make(map[string]bool)
	doc.Find("a[href*='/threads/']").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.Contains(href, "/forums/") || strings.Contains(href, "/login/") {
			return
		}
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil || seen[absURL] {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = titleFromPathSegment(absURL)
		}
		seen[absURL] = true
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

// quirkSteamripWP drops anchors whose href matches navigation chrome
// (/category/, /tag/, ...) or whose title is empty after normalization —
// the common shape of SteamRIP and other WordPress-theme listing sites.
func quirkSteamripWP(doc *goquery.Document, d SiteDescriptor) []rawCandidate {
	var out []rawCandidate
	doc.Find("h2.entry-title a, article a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" || navPathRe.MatchString(href) {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			return
		}
		absURL, err := resolveURL(d.BaseURL, href)
		if err != nil {
			return
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

// genericFallback scans every <a href> on the page, deriving a title from
// link text or, failing that, from the last path segment.
func genericFallback(doc *goquery.Document, base string) []rawCandidate {
	var out []rawCandidate
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || navPathRe.MatchString(href) {
			return
		}
		absURL, err := resolveURL(base, href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = titleFromPathSegment(absURL)
		}
		if title == "" {
			return
		}
		out = append(out, rawCandidate{Title: title, URL: absURL})
	})
	return out
}

var idTokenRe = regexp.MustCompile(`^\d+$`)

// titleFromPathSegment derives a readable title from a URL's last path
// segment: replace -/_ with spaces, strip a trailing extension and bare
// numeric id tokens.
func titleFromPathSegment(absURL string) string {
	u, err := url.Parse(absURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if idTokenRe.MatchString(last) {
		return ""
	}
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	last = strings.ReplaceAll(last, "-", " ")
	last = strings.ReplaceAll(last, "_", " ")
	decoded, err := url.PathUnescape(last)
	if err == nil {
		last = decoded
	}
	return strings.TrimSpace(last)
}

// filterCandidates applies §4.7 step 4: terms, exact phrases, exclude
// terms, and "every regex matches title OR url" (the §9 resolution).
func filterCandidates(candidates []rawCandidate, query AdvancedQuery, site string) []SearchResult {
	var out []SearchResult
	for _, c := range candidates {
		haystack := strings.ToLower(c.Title + " " + c.URL)

		matchedAll := true
		for _, term := range query.Terms {
			if !strings.Contains(haystack, strings.ToLower(term)) {
				matchedAll = false
				break
			}
		}
		if !matchedAll {
			continue
		}

		for _, phrase := range query.ExactPhrases {
			if !strings.Contains(haystack, phrase) {
				matchedAll = false
				break
			}
		}
		if !matchedAll {
			continue
		}

		excluded := false
		for _, ex := range query.ExcludeTerms {
			if strings.Contains(haystack, ex) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		regexOK := true
		for _, re := range query.RegexPatterns {
			if !re.MatchString(c.Title) && !re.MatchString(c.URL) {
				regexOK = false
				break
			}
		}
		if !regexOK {
			continue
		}

		out = append(out, SearchResult{Site: site, Title: c.Title, URL: c.URL})
	}
	return out
}
