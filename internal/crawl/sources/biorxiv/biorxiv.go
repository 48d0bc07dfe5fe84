// Package biorxiv provides the bioRxiv search-result source strategy.
package biorxiv

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/browser"
	"github.com/paperharbor/acquisition-service/internal/crawl/htmlcrawl"
	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/observability"
)

const (
	// SourceName is the identifier used in crawl requests.
	SourceName = "biorxiv"

	defaultBaseURL          = "https://www.biorxiv.org"
	defaultRatePerMinute    = 8
	defaultMaxPages         = 5
	defaultDetailFetchLimit = 3
)

// doiPattern pulls the DOI out of the citation metadata text, which reads
// like "doi: https://doi.org/10.1101/2024.01.15.575742".
var doiPattern = regexp.MustCompile(`(10\.\d{4,9}/\S+)`)

// Config carries the site-level knobs for the bioRxiv strategy.
type Config struct {
	BaseURL          string
	RatePerMinute    int
	MaxPages         int
	DetailFetchLimit int
	MaxEmptyPages    int
	MaxReconnects    int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = defaultRatePerMinute
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.DetailFetchLimit <= 0 {
		c.DetailFetchLimit = defaultDetailFetchLimit
	}
}

// New creates the bioRxiv source strategy over the given browser session.
func New(cfg Config, session browser.Session, metrics *observability.Metrics, logger zerolog.Logger) *htmlcrawl.Strategy {
	cfg.applyDefaults()
	base := strings.TrimRight(cfg.BaseURL, "/")

	profile := htmlcrawl.Profile{
		Name:       SourceName,
		Source:     domain.SourceTypeBioRxiv,
		Confidence: 80,
		Venue:      "bioRxiv",
		SearchURL: func(keywords []string, page int) string {
			// bioRxiv search paths carry the query as a path segment and
			// count pages from zero.
			query := url.PathEscape(strings.Join(keywords, " "))
			if page <= 1 {
				return fmt.Sprintf("%s/search/%s", base, query)
			}
			return fmt.Sprintf("%s/search/%s?page=%d", base, query, page-1)
		},
		Selectors: browser.SelectorMap{
			Container:  "li.search-result",
			Title:      ".highwire-cite-title a",
			Link:       ".highwire-cite-title a",
			Identifier: ".highwire-cite-metadata-doi",
			Snippet:    ".highwire-cite-snippet",
			Authors:    ".highwire-citation-authors",
		},
		NextPageSelector:  "li.pager-next a",
		DetailAbstract:    "div.abstract",
		DetailIdentifier:  ".highwire-cite-metadata-doi",
		DetailFetchLimit:  cfg.DetailFetchLimit,
		IdentifierPattern: doiPattern,
		DateLayouts:       []string{"January 2, 2006", "2006-01-02"},
		RatePerMinute:     cfg.RatePerMinute,
		MaxPages:          cfg.MaxPages,
		AllowedAssetHosts: []string{"biorxiv.org"},
	}

	return htmlcrawl.New(profile, session, htmlcrawl.Options{
		MaxEmptyPages: cfg.MaxEmptyPages,
		MaxReconnects: cfg.MaxReconnects,
	}, metrics, logger)
}
