// Package domain provides the domain model for the paper acquisition service.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the acquisition source that produced a paper.
type SourceType string

const (
	SourceTypePubMed  SourceType = "pubmed"
	SourceTypeBioRxiv SourceType = "biorxiv"
	SourceTypeRSS     SourceType = "rss"
)

// AbstractPending is the placeholder stored when a source exposes no abstract
// in its result listing and the detail fetch did not recover one. Downstream
// enrichment can backfill records carrying this value.
const AbstractPending = "[abstract pending]"

// Paper is the canonical record persisted and deduplicated by the service.
// The natural key is a DOI in the broad sense: a real DOI, a site-specific
// identifier, or a content hash for feed items without stable IDs.
type Paper struct {
	ID          uuid.UUID  `json:"id"`
	NaturalKey  string     `json:"naturalKey"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract"`
	Authors     []string   `json:"authors"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	Source      SourceType `json:"source"`
	Processed   bool       `json:"processed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Valid reports whether the record satisfies the persistence invariant:
// a usable natural key and a non-empty title.
func (p *Paper) Valid() bool {
	return strings.TrimSpace(p.NaturalKey) != "" && strings.TrimSpace(p.Title) != ""
}

// SearchText returns the concatenation of the fields that keyword and
// category filters match against.
func (p *Paper) SearchText() string {
	parts := make([]string, 0, 4+len(p.Keywords)+len(p.Categories))
	parts = append(parts, p.Title, p.Abstract)
	parts = append(parts, p.Keywords...)
	parts = append(parts, p.Categories...)
	return strings.ToLower(strings.Join(parts, " "))
}

// NormalizeDOI lowercases and strips common URL prefixes from a DOI so that
// the same work found via different routes dedups to one key.
func NormalizeDOI(raw string) string {
	doi := strings.TrimSpace(strings.ToLower(raw))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.TrimSpace(doi)
}

// HashKey derives a short, stable natural key from arbitrary text, used when
// a record exposes neither a DOI nor a site identifier. The prefix records
// how the key was derived ("feed" for feed entries, "hash" for listings).
func HashKey(prefix, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
