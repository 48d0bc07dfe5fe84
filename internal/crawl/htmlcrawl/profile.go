// Package htmlcrawl implements the shared search-result crawl engine behind
// the browser-automated source strategies. A site is described by a Profile;
// the Strategy drives the page loop, extraction, normalization and the
// per-run offer pipeline.
package htmlcrawl

import (
	"regexp"

	"github.com/paperharbor/acquisition-service/internal/browser"
	"github.com/paperharbor/acquisition-service/internal/domain"
)

// Profile describes one crawlable site. Everything site-specific lives here;
// the engine itself is site-agnostic.
type Profile struct {
	// Name is the source identifier used in requests, status and metrics.
	Name string

	// Source is the provenance recorded on every paper from this site.
	Source domain.SourceType

	// Confidence ranks this source against the others. Higher runs first.
	Confidence int

	// Venue is the publication venue recorded on papers, when the site
	// implies one.
	Venue string

	// SearchURL builds the result-page URL for the given query keywords and
	// 1-based page number.
	SearchURL func(keywords []string, page int) string

	// Selectors extracts raw item records from a result page.
	Selectors browser.SelectorMap

	// NextPageSelector matches the pagination link. An absent match ends the
	// source's run.
	NextPageSelector string

	// DetailAbstract and DetailIdentifier are evaluated on an item's detail
	// page when the result listing exposes only a snippet.
	DetailAbstract   string
	DetailIdentifier string

	// DetailFetchLimit caps detail-page navigations per result page.
	DetailFetchLimit int

	// IdentifierPattern extracts the stable site identifier from the raw
	// identifier text. When it does not match, the raw text is kept.
	IdentifierPattern *regexp.Regexp

	// DateLayouts are tried in order before falling back to fuzzy parsing.
	DateLayouts []string

	// RatePerMinute is the page-transition budget for this site.
	RatePerMinute int

	// MaxPages caps result pages per run.
	MaxPages int

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// AllowedAssetHosts is the narrow allow-list of stylesheet/image hosts.
	AllowedAssetHosts []string
}
