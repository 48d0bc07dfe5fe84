package feeds

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scientific titles and abstracts carry meaning in their markup: H<sub>2</sub>O
// or 10<sup>-9</sup> become unreadable if the tags are simply dropped.
// Subscript and superscript content is converted to the Unicode equivalents
// where they exist; emphasis tags are unwrapped to their text.

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄',
	'5': '₅', '6': '₆', '7': '₇', '8': '₈', '9': '₉',
	'+': '₊', '-': '₋', '=': '₌', '(': '₍', ')': '₎',
	'a': 'ₐ', 'e': 'ₑ', 'o': 'ₒ', 'x': 'ₓ', 'h': 'ₕ',
	'k': 'ₖ', 'l': 'ₗ', 'm': 'ₘ', 'n': 'ₙ', 'p': 'ₚ',
	's': 'ₛ', 't': 'ₜ',
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
	'+': '⁺', '-': '⁻', '=': '⁼', '(': '⁽', ')': '⁾',
	'n': 'ⁿ', 'i': 'ⁱ',
}

// Sanitize strips residual markup from feed text, converting sub/superscript
// content to Unicode characters and unwrapping emphasis to plain text.
// Input without markup passes through with whitespace collapsed.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsRune(trimmed, '<') {
		return collapseSpace(html.UnescapeString(trimmed))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + trimmed + "</div>"))
	if err != nil {
		return collapseSpace(html.UnescapeString(trimmed))
	}

	doc.Find("sub").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml(html.EscapeString(mapRunes(s.Text(), subscripts)))
	})
	doc.Find("sup").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml(html.EscapeString(mapRunes(s.Text(), superscripts)))
	})
	doc.Find("i, em, b, strong").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml(html.EscapeString(s.Text()))
	})
	doc.Find("script, style").Remove()

	return collapseSpace(doc.Text())
}

// mapRunes converts each rune through the table, keeping unmapped runes as-is.
func mapRunes(text string, table map[rune]rune) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := table[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
