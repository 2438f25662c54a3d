package core

import (
	"regexp"
	"strings"
)

// AdvancedQuery is the structured form of a user phrase, per §4.2.
type AdvancedQuery struct {
	Terms            []string
	ExcludeTerms     []string
	SiteRestrictions []string // lowercased
	ExactPhrases     []string
	RegexPatterns    []*regexp.Regexp
	Segments         []AdvancedQuery
	Raw              string
}

// IsEmpty reports whether a segment carries no searchable content at all
// (no terms and no phrases), used to detect InvalidQuery (§8 boundary).
func (q AdvancedQuery) IsEmpty() bool {
	return len(q.Terms) == 0 && len(q.ExactPhrases) == 0
}

// NetworkQuery is the text actually sent to a site: terms and exact
// phrases joined by spaces. Operators never reach the network (§4.2).
func (q AdvancedQuery) NetworkQuery() string {
	parts := make([]string, 0, len(q.Terms)+len(q.ExactPhrases))
	parts = append(parts, q.Terms...)
	parts = append(parts, q.ExactPhrases...)
	return strings.Join(parts, " ")
}

// ParseQuery parses a raw user phrase into an AdvancedQuery following the
// seven ordered rules in §4.2. Returns ErrInvalidQuery if, after parsing,
// every segment is empty.
func ParseQuery(raw string) (AdvancedQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AdvancedQuery{}, ErrInvalidQuery
	}

	segTexts := strings.Split(trimmed, "|")
	top := AdvancedQuery{Raw: raw}
	anyNonEmpty := false
	for _, segText := range segTexts {
		seg := parseSegment(segText)
		top.Segments = append(top.Segments, seg)
		if !seg.IsEmpty() {
			anyNonEmpty = true
		}
	}
	if !anyNonEmpty {
		return AdvancedQuery{}, ErrInvalidQuery
	}

	// When there is exactly one segment, the top-level query mirrors it so
	// single-segment callers (the common case) don't need to reach into
	// Segments[0].
	if len(top.Segments) == 1 {
		single := top.Segments[0]
		single.Segments = top.Segments
		single.Raw = raw
		return single, nil
	}
	return top, nil
}

var quotedPhraseRe = regexp.MustCompile(`"([^"]*)"`)

func parseSegment(text string) AdvancedQuery {
	var seg AdvancedQuery

	// Rule 2: extract balanced "..." substrings as exact phrases.
	remaining := quotedPhraseRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := quotedPhraseRe.FindStringSubmatch(m)
		phrase := strings.TrimSpace(sub[1])
		if phrase != "" {
			seg.ExactPhrases = append(seg.ExactPhrases, strings.ToLower(phrase))
		}
		return " "
	})

	// Rule 3: tokenize remaining text on whitespace.
	for _, tok := range strings.Fields(remaining) {
		switch {
		case strings.HasPrefix(tok, "site:"):
			// Rule 4: comma-split, case-insensitive.
			names := strings.Split(tok[len("site:"):], ",")
			for _, n := range names {
				n = strings.ToLower(strings.TrimSpace(n))
				if n != "" {
					seg.SiteRestrictions = append(seg.SiteRestrictions, n)
				}
			}
		case strings.HasPrefix(tok, "regex:"):
			// Rule 5: compile; invalid patterns are dropped silently.
			pattern := tok[len("regex:"):]
			if pattern != "" {
				if re, err := regexp.Compile(pattern); err == nil {
					seg.RegexPatterns = append(seg.RegexPatterns, re)
				}
			}
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			// Rule 6.
			seg.ExcludeTerms = append(seg.ExcludeTerms, strings.ToLower(tok[1:]))
		default:
			// Rule 7.
			seg.Terms = append(seg.Terms, tok)
		}
	}
	return seg
}

// SegmentsForSite returns the segments applicable to site, per the
// "Segment-to-site projection" rules in §4.2: a segment applies if it has
// no site restrictions, or if one of its restrictions is a case-insensitive
// substring of this site's name.
func SegmentsForSite(site string, segments []AdvancedQuery) []AdvancedQuery {
	var out []AdvancedQuery
	lower := strings.ToLower(site)
	for _, seg := range segments {
		if len(seg.SiteRestrictions) == 0 {
			out = append(out, seg)
			continue
		}
		for _, s := range seg.SiteRestrictions {
			if strings.Contains(lower, s) {
				out = append(out, seg)
				break
			}
		}
	}
	return out
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	operatorTokenRe = regexp.MustCompile(`(?i)(^|\s)(site:\S+|regex:\S+|-\S+)`)
)

// NormalizeQueryKey produces the cache key for a raw phrase: lowercased,
// whitespace-collapsed, operator tokens stripped, so
// `"Elden Ring site:fitgirl"` and `"elden  ring  site:fitgirl"` hash equal.
// Idempotent: NormalizeQueryKey(NormalizeQueryKey(s)) == NormalizeQueryKey(s).
func NormalizeQueryKey(raw string) string {
	s := strings.ToLower(raw)
	s = operatorTokenRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, `"`, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
