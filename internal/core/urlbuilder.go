package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildURL turns (descriptor, network query) into the request URL for one
// fetch, per the per-strategy rules in §4.3. page is 0-based and only
// consulted by ListingPage; ForumSearch paging is done by BuildListingURL.
func BuildURL(d SiteDescriptor, query string, page int) (string, error) {
	switch d.Strategy {
	case StrategyQueryParam:
		return buildQueryParamURL(d, query)
	case StrategyPathEncoded:
		return buildPathEncodedURL(d, query)
	case StrategyFrontPage:
		return d.BaseURL, nil
	case StrategyListingPage:
		return buildListingPageURL(d, page)
	case StrategyForumSearch:
		return buildForumSearchURL(d, query)
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrConfigError, d.Strategy)
	}
}

// buildQueryParamURL form-encodes q (space→'+') onto base_url?{query_param}=.
func buildQueryParamURL(d SiteDescriptor, query string) (string, error) {
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base_url: %w", err)
	}
	q := base.Query()
	q.Set(d.QueryParam, query)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// buildPathEncodedURL percent-encodes q with space→%20 and appends it as a
// path segment.
func buildPathEncodedURL(d SiteDescriptor, query string) (string, error) {
	encoded := strings.ReplaceAll(url.PathEscape(query), "+", "%20")
	base := strings.TrimRight(d.BaseURL, "/")
	return base + "/" + encoded, nil
}

func buildListingPageURL(d SiteDescriptor, page int) (string, error) {
	base := strings.TrimRight(d.BaseURL, "/") + d.ListingPath
	if page <= 0 {
		return base, nil
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "page=" + strconv.Itoa(page+1), nil
}

// buildForumSearchURL emits a POST-form-style GET: keywords=q,
// search-result-type=topics, plus any configured forum-id whitelist.
func buildForumSearchURL(d SiteDescriptor, query string) (string, error) {
	base, err := url.Parse(strings.TrimRight(d.BaseURL, "/") + "/search.php")
	if err != nil {
		return "", fmt.Errorf("parse base_url: %w", err)
	}
	q := base.Query()
	q.Set("keywords", query)
	q.Set("terms", "all")
	q.Set("sr", "topics")
	for _, fid := range d.ForumIDs {
		q.Add("fid[]", fid)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// BuildListingURL is the pagination variant the orchestrator uses for every
// fetch, moving to the next page while a page yields no candidates. For
// ForumSearch, start offsets step by 100 per page per the §9 resolution;
// every other strategy delegates to BuildURL (ListingPage appends page=N+1).
// The orchestrator caps the pages tried at Cfg.MaxListingPages.
func BuildListingURL(d SiteDescriptor, query string, pageIndex int) (string, error) {
	if d.Strategy != StrategyForumSearch {
		return BuildURL(d, query, pageIndex)
	}
	u, err := buildForumSearchURL(d, query)
	if err != nil {
		return "", err
	}
	if pageIndex == 0 {
		return u, nil
	}
	parsed, _ := url.Parse(u)
	q := parsed.Query()
	q.Set("start", strconv.Itoa(pageIndex*100))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
