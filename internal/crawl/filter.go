package crawl

import (
	"strings"
	"time"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// relatedTerms expands a broad topic keyword to its common sub-techniques.
// Feed abstracts are short and rarely contain the exact configured phrase,
// so the permissive (RSS) filter mode tests these expansions too.
var relatedTerms = map[string][]string{
	"machine learning": {
		"deep learning", "neural network", "transformer",
		"supervised learning", "reinforcement learning",
	},
	"gene editing": {
		"crispr", "cas9", "base editing", "prime editing", "talen",
	},
	"synthetic biology": {
		"genetic circuit", "biosynthesis", "metabolic engineering",
		"cell-free system",
	},
	"bioinformatics": {
		"sequence alignment", "genome assembly", "phylogenetics",
		"computational biology",
	},
	"drug discovery": {
		"virtual screening", "lead optimization", "molecular docking",
		"pharmacokinetics",
	},
	"immunology": {
		"t cell", "b cell", "antibody", "cytokine", "immunotherapy",
	},
}

// Filters holds the predicate-based inclusion rules applied before a record
// is persisted. Absent predicates mean "no constraint". All configured
// predicates are AND-combined.
type Filters struct {
	// Keywords accepts candidates whose searchable text contains any keyword
	// (case-insensitive substring).
	Keywords []string

	// Categories accepts candidates whose searchable text contains any
	// configured category.
	Categories []string

	// DateFrom and DateTo bound the publication date inclusively. Candidates
	// without a date skip this check rather than being rejected.
	DateFrom *time.Time
	DateTo   *time.Time

	// Permissive enables related-term expansion and partial multi-word
	// keyword matching. Used by the RSS variant.
	Permissive bool
}

// Empty reports whether no predicate is configured.
func (f Filters) Empty() bool {
	return len(f.Keywords) == 0 && len(f.Categories) == 0 && f.DateFrom == nil && f.DateTo == nil
}

// Accept applies all configured predicates to the candidate.
func (f Filters) Accept(p *domain.Paper) bool {
	if !f.acceptDate(p.PublishedAt) {
		return false
	}

	text := p.SearchText()
	if len(f.Keywords) > 0 && !f.matchKeywords(text) {
		return false
	}
	if len(f.Categories) > 0 && !f.matchCategories(text) {
		return false
	}
	return true
}

func (f Filters) acceptDate(published *time.Time) bool {
	if published == nil {
		// Date is advisory; absence never rejects.
		return true
	}
	if f.DateFrom != nil && published.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && published.After(*f.DateTo) {
		return false
	}
	return true
}

func (f Filters) matchKeywords(text string) bool {
	for _, keyword := range f.Keywords {
		if f.matchKeyword(text, keyword) {
			return true
		}
	}
	return false
}

func (f Filters) matchKeyword(text, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	if strings.Contains(text, keyword) {
		return true
	}
	if !f.Permissive {
		return false
	}

	for _, related := range relatedTerms[keyword] {
		if strings.Contains(text, related) {
			return true
		}
	}

	// Partial multi-word match: every word of the keyword present somewhere.
	words := strings.Fields(keyword)
	if len(words) < 2 {
		return false
	}
	for _, word := range words {
		if !strings.Contains(text, word) {
			return false
		}
	}
	return true
}

func (f Filters) matchCategories(text string) bool {
	for _, category := range f.Categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category != "" && strings.Contains(text, category) {
			return true
		}
	}
	return false
}
