package extract

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// DivStrategy treats the innermost marker-bearing div that reads as a valid
// listing as one card.
type DivStrategy struct {
	base
}

// NewDivStrategy returns a div strategy bound to profile.
func NewDivStrategy(profile *config.SiteProfile) *DivStrategy {
	return &DivStrategy{base{profile: profile, name: StrategyDiv}}
}

// Extract implements Strategy.
func (s *DivStrategy) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var out []models.ListingCandidate
	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		text := blockText(div)
		if !s.profile.HasMarker(text) || s.holdsListing(div, "div") {
			return
		}
		if c, ok := s.candidate(area, textFields(text)); ok {
			out = append(out, c)
		}
	})
	return out
}

// TextBlockStrategy picks up long free-text paragraphs that mention a marker.
type TextBlockStrategy struct {
	base
}

// NewTextBlockStrategy returns a text-block strategy bound to profile.
func NewTextBlockStrategy(profile *config.SiteProfile) *TextBlockStrategy {
	return &TextBlockStrategy{base{profile: profile, name: StrategyTextBlock}}
}

// Extract implements Strategy.
func (s *TextBlockStrategy) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var out []models.ListingCandidate
	doc.Find("p, span, div").Each(func(_ int, block *goquery.Selection) {
		text := blockText(block)
		if utf8.RuneCountInString(parser.CollapseWhitespace(text)) <= s.profile.TextBlockMinLength {
			return
		}
		if !s.profile.HasMarker(text) || s.holdsListing(block, textBlockChildren) {
			return
		}
		if c, ok := s.candidate(area, textFields(text)); ok {
			out = append(out, c)
		}
	})
	return out
}

// textBlockChildren are the nested elements that make a long block a
// container of listings rather than one listing.
const textBlockChildren = "div, p, li, table"

// ListStrategy reads listings printed as list items.
type ListStrategy struct {
	base
}

// NewListStrategy returns a list strategy bound to profile.
func NewListStrategy(profile *config.SiteProfile) *ListStrategy {
	return &ListStrategy{base{profile: profile, name: StrategyList}}
}

// Extract implements Strategy.
func (s *ListStrategy) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var out []models.ListingCandidate
	doc.Find("ul > li, ol > li").Each(func(_ int, item *goquery.Selection) {
		text := blockText(item)
		if !s.profile.HasMarker(text) {
			return
		}
		if c, ok := s.candidate(area, textFields(text)); ok {
			out = append(out, c)
		}
	})
	return out
}

// holdsListing reports whether a descendant of sel matching selector is a
// valid listing on its own. Marked children that fail the validity gate, such
// as a "LUXURY PG" badge, do not count.
func (b base) holdsListing(sel *goquery.Selection, selector string) bool {
	found := false
	sel.Find(selector).EachWithBreak(func(_ int, child *goquery.Selection) bool {
		text := blockText(child)
		if b.profile.HasMarker(text) {
			_, err := b.build("", textFields(text))
			found = err == nil
		}
		return !found
	})
	return found
}

// textFields feeds one block of free text to every field parser.
func textFields(text string) fields {
	return fields{name: text, address: text, contact: text, full: text}
}
