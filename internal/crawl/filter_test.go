package crawl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

func TestFiltersKeywordMatch(t *testing.T) {
	filters := Filters{Keywords: []string{"machine learning"}}

	match := &domain.Paper{
		Title:    "Machine Learning for Protein Folding",
		Abstract: "We apply machine learning to structure prediction.",
	}
	miss := &domain.Paper{
		Title:    "A Synthetic Biology Chassis for Terpenoid Production",
		Abstract: "We engineer a yeast strain for biosynthesis.",
	}

	assert.True(t, filters.Accept(match))
	assert.False(t, filters.Accept(miss))
}

func TestFiltersPermissiveRelatedTerms(t *testing.T) {
	paper := &domain.Paper{
		Title:    "Transformer Architectures in Genomics",
		Abstract: "A deep learning approach to variant calling.",
	}

	strict := Filters{Keywords: []string{"machine learning"}}
	assert.False(t, strict.Accept(paper), "exact phrase is absent")

	permissive := Filters{Keywords: []string{"machine learning"}, Permissive: true}
	assert.True(t, permissive.Accept(paper), "related term should match")
}

func TestFiltersPermissivePartialMultiWord(t *testing.T) {
	paper := &domain.Paper{
		Title:    "Editing the Genome",
		Abstract: "Precise gene modification by programmable nucleases enables editing at scale.",
	}

	permissive := Filters{Keywords: []string{"gene editing"}, Permissive: true}
	assert.True(t, permissive.Accept(paper), "both words appear separately")
}

func TestFiltersDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	filters := Filters{DateFrom: &from, DateTo: &to}

	inside := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, filters.Accept(&domain.Paper{Title: "a", PublishedAt: &inside}))
	assert.False(t, filters.Accept(&domain.Paper{Title: "a", PublishedAt: &before}))
	assert.False(t, filters.Accept(&domain.Paper{Title: "a", PublishedAt: &after}))
}

func TestFiltersMissingDatePasses(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filters := Filters{DateFrom: &from}

	assert.True(t, filters.Accept(&domain.Paper{Title: "undated preprint"}))
}

func TestFiltersCategories(t *testing.T) {
	filters := Filters{Categories: []string{"neuroscience"}}

	tagged := &domain.Paper{Title: "Cortical Maps", Categories: []string{"Neuroscience"}}
	untagged := &domain.Paper{Title: "Cortical Maps", Categories: []string{"genomics"}}

	assert.True(t, filters.Accept(tagged))
	assert.False(t, filters.Accept(untagged))
}

func TestFiltersPredicatesAndCombined(t *testing.T) {
	filters := Filters{
		Keywords:   []string{"crispr"},
		Categories: []string{"immunology"},
	}

	both := &domain.Paper{
		Title:      "CRISPR Screens in T Cells",
		Categories: []string{"immunology"},
	}
	keywordOnly := &domain.Paper{
		Title:      "CRISPR Screens in Yeast",
		Categories: []string{"genomics"},
	}

	assert.True(t, filters.Accept(both))
	assert.False(t, filters.Accept(keywordOnly))
}

func TestFiltersEmpty(t *testing.T) {
	assert.True(t, Filters{}.Empty())
	assert.True(t, Filters{}.Accept(&domain.Paper{Title: "anything"}))
	assert.False(t, Filters{Keywords: []string{"x"}}.Empty())
}
