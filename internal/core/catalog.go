package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy is one of the five URL/extraction shapes a descriptor can take.
// A tagged enum, not an interface: dispatch happens via switch in
// urlbuilder.go and extractor.go, per the "polymorphism over strategies"
// design note.
type Strategy string

const (
	StrategyQueryParam   Strategy = "query_param"
	StrategyFrontPage    Strategy = "front_page"
	StrategyPathEncoded  Strategy = "path_encoded"
	StrategyListingPage  Strategy = "listing_page"
	StrategyForumSearch  Strategy = "forum_search"
)

// SiteDescriptor is the static, read-only record describing how to search
// one site. Loaded once at startup; shared across every search.
type SiteDescriptor struct {
	Name                string        `yaml:"name"`
	BaseURL             string        `yaml:"base_url"`
	Strategy            Strategy      `yaml:"strategy"`
	QueryParam          string        `yaml:"query_param,omitempty"`
	ListingPath         string        `yaml:"listing_path,omitempty"`
	Selector            string        `yaml:"selector"`
	FallbackSelectors   []string      `yaml:"fallback_selectors,omitempty"`
	TitleSource         string        `yaml:"title_source,omitempty"` // "text" or an attribute name
	URLAttr             string        `yaml:"url_attr,omitempty"`     // defaults to "href"
	Quirk               string        `yaml:"quirk,omitempty"`        // selects a per-site idiosyncrasy function
	RequiresJS          bool          `yaml:"requires_js,omitempty"`
	RequiresSolver      bool          `yaml:"requires_solver,omitempty"`
	Timeout             time.Duration `yaml:"timeout,omitempty"`
	RetryAttempts       int           `yaml:"retry_attempts,omitempty"`
	RateLimitBaseDelay  time.Duration `yaml:"rate_limit_base_delay,omitempty"`
	ForumIDs            []string      `yaml:"forum_ids,omitempty"`
}

// catalogFile is the on-disk shape: a name → descriptor map, matching
// "Unknown keys are rejected at load" via yaml.Decoder's KnownFields.
type catalogFile struct {
	Sites map[string]SiteDescriptor `yaml:"sites"`
}

// Catalog is the immutable, process-wide set of loaded site descriptors.
type Catalog struct {
	byName map[string]SiteDescriptor
	names  []string // sorted, stable iteration order
}

// LoadCatalog reads and validates a YAML descriptor table from path.
// Any validation failure is fatal at startup (ConfigError), matching §4.1.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigFileError{Path: path, Err: err}
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, &ConfigFileError{Path: path, Err: err}
	}

	cat := &Catalog{byName: make(map[string]SiteDescriptor, len(file.Sites))}
	for name, d := range file.Sites {
		d.Name = name
		if err := validateDescriptor(d); err != nil {
			return nil, &ConfigFileError{Path: path, Err: fmt.Errorf("site %q: %w", name, err)}
		}
		if d.URLAttr == "" {
			d.URLAttr = "href"
		}
		if d.TitleSource == "" {
			d.TitleSource = "text"
		}
		cat.byName[name] = d
		cat.names = append(cat.names, name)
	}
	sort.Strings(cat.names)
	return cat, nil
}

func validateDescriptor(d SiteDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("missing name")
	}
	if d.BaseURL == "" {
		return fmt.Errorf("missing base_url")
	}
	switch d.Strategy {
	case StrategyQueryParam:
		if d.QueryParam == "" {
			return fmt.Errorf("query_param strategy requires query_param")
		}
	case StrategyListingPage:
		if d.ListingPath == "" {
			return fmt.Errorf("listing_page strategy requires listing_path")
		}
	case StrategyForumSearch, StrategyPathEncoded:
		if d.Selector == "" {
			return fmt.Errorf("%s strategy requires a selector", d.Strategy)
		}
	case StrategyFrontPage:
		// no additional required fields
	default:
		return fmt.Errorf("unknown strategy %q", d.Strategy)
	}
	return nil
}

// Lookup returns the descriptor for name and whether it exists.
func (c *Catalog) Lookup(name string) (SiteDescriptor, bool) {
	d, ok := c.byName[strings.ToLower(name)]
	if ok {
		return d, true
	}
	// names are stored as written in the file; fall back to a case-insensitive scan
	for _, n := range c.names {
		if strings.EqualFold(n, name) {
			return c.byName[n], true
		}
	}
	return SiteDescriptor{}, false
}

// All returns every descriptor, sorted by name.
func (c *Catalog) All() []SiteDescriptor {
	out := make([]SiteDescriptor, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.byName[n])
	}
	return out
}

// Select resolves an Options site selection against the catalog: an
// explicit (possibly inverted) list, or every descriptor when empty.
// Names not present in the catalog are returned separately as unknown so
// the caller can emit the §8 "unknown site" warning exactly once.
func (c *Catalog) Select(names []string, invert bool) (selected []SiteDescriptor, unknown []string) {
	if len(names) == 0 {
		return c.All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Lookup(n); ok {
			want[strings.ToLower(n)] = true
		} else {
			unknown = append(unknown, n)
		}
	}
	for _, d := range c.All() {
		present := want[strings.ToLower(d.Name)]
		if present != invert {
			selected = append(selected, d)
		}
	}
	return selected, unknown
}
