package htmlcrawl

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/paperharbor/acquisition-service/internal/browser"
	"github.com/paperharbor/acquisition-service/internal/domain"
)

// normalize converts one raw extracted record into a paper. Items without a
// usable title are dropped; every other field degrades gracefully.
func (s *Strategy) normalize(item browser.RawItem) *domain.Paper {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	paper := &domain.Paper{
		Title:      title,
		URL:        strings.TrimSpace(item.Link),
		Authors:    s.parseAuthors(item.Authors),
		Venue:      s.profile.Venue,
		Source:     s.profile.Source,
		NaturalKey: s.naturalKey(item.Identifier, item.Link, title),
	}

	paper.Abstract = strings.TrimSpace(item.Snippet)
	if paper.Abstract == "" {
		paper.Abstract = domain.AbstractPending
	}

	if date := s.parseDate(item.Date); date != nil {
		paper.PublishedAt = date
	}
	return paper
}

// naturalKey derives the dedup key: a normalized DOI when the identifier
// looks like one, else the site-prefixed identifier, else a content hash.
func (s *Strategy) naturalKey(identifier, link, title string) string {
	id := strings.TrimSpace(identifier)
	if s.profile.IdentifierPattern != nil && id != "" {
		if match := s.profile.IdentifierPattern.FindStringSubmatch(id); len(match) > 1 {
			id = match[1]
		}
	}
	if id != "" {
		if doi := domain.NormalizeDOI(id); strings.HasPrefix(doi, "10.") {
			return "doi:" + doi
		}
		return fmt.Sprintf("%s:%s", s.profile.Name, id)
	}
	return domain.HashKey("hash", title+"|"+link)
}

// parseAuthors splits an author byline on commas. An empty byline yields a
// source-attributed placeholder so the record stays renderable.
func (s *Strategy) parseAuthors(raw string) []string {
	var authors []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) == 0 {
		return []string{fmt.Sprintf("Unknown (%s)", s.profile.Name)}
	}
	return authors
}

// parseDate tries the profile's explicit layouts first, then fuzzy parsing.
// Unparseable dates are left unset rather than guessed.
func (s *Strategy) parseDate(raw string) *time.Time {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	for _, layout := range s.profile.DateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return &parsed
		}
	}
	if parsed, err := dateparse.ParseAny(text); err == nil {
		return &parsed
	}
	return nil
}
