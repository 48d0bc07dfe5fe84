// Package pubmed provides the PubMed search-result source strategy.
package pubmed

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
	SourceName = "pubmed"

	defaultBaseURL          = "https://pubmed.ncbi.nlm.nih.gov"
	defaultRatePerMinute    = 10
	defaultMaxPages         = 5
	defaultDetailFetchLimit = 3
)

// pmidPattern pulls the numeric PubMed identifier out of the docsum PMID
// span, which sometimes carries surrounding label text.
var pmidPattern = regexp.MustCompile(`(\d{6,9})`)

// Config carries the site-level knobs for the PubMed strategy.
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

// New creates the PubMed source strategy over the given browser session.
func New(cfg Config, session browser.Session, metrics *observability.Metrics, logger zerolog.Logger) *htmlcrawl.Strategy {
	cfg.applyDefaults()
	base := strings.TrimRight(cfg.BaseURL, "/")

	profile := htmlcrawl.Profile{
		Name:       SourceName,
		Source:     domain.SourceTypePubMed,
		Confidence: 90,
		Venue:      "PubMed",
		SearchURL: func(keywords []string, page int) string {
			query := url.Values{}
			query.Set("term", strings.Join(keywords, " "))
			query.Set("format", "abstract")
			if page > 1 {
				query.Set("page", fmt.Sprintf("%d", page))
			}
			return base + "/?" + query.Encode()
		},
		Selectors: browser.SelectorMap{
			Container:  "article.full-docsum",
			Title:      "a.docsum-title",
			Link:       "a.docsum-title",
			Identifier: "span.docsum-pmid",
			Snippet:    "div.full-view-snippet",
			Authors:    "span.docsum-authors",
			Date:       "span.docsum-journal-citation",
		},
		NextPageSelector:  "a.next-page-link",
		DetailAbstract:    "div.abstract-content",
		DetailIdentifier:  "span.identifier.doi a",
		DetailFetchLimit:  cfg.DetailFetchLimit,
		IdentifierPattern: pmidPattern,
		DateLayouts:       []string{"2006 Jan 2", "2006 Jan", "2006"},
		RatePerMinute:     cfg.RatePerMinute,
		MaxPages:          cfg.MaxPages,
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		},
		AllowedAssetHosts: []string{"ncbi.nlm.nih.gov"},
	}

	return htmlcrawl.New(profile, session, htmlcrawl.Options{
		MaxEmptyPages: cfg.MaxEmptyPages,
		MaxReconnects: cfg.MaxReconnects,
	}, metrics, logger)
}
