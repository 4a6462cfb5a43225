// Package extract recovers listing candidates from area pages using several
// independent heuristics and reconciles them by natural key.
package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// Strategy names.
const (
	StrategyTableRow  = "table-row"
	StrategyTablePair = "table-pair"
	StrategyDiv       = "div"
	StrategyTextBlock = "text-block"
	StrategyList      = "list"
)

// Strategy scans a document for one structural pattern. Every candidate it
// returns has passed parser.ValidateCandidate.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate
}

// Extractor runs a fixed set of strategies over one document.
type Extractor struct {
	strategies []Strategy
}

// NewExtractor builds an extractor with every strategy bound to profile.
// Table strategies run first by convention only; reconciliation is by key.
func NewExtractor(profile *config.SiteProfile) *Extractor {
	return &Extractor{
		strategies: []Strategy{
			NewTableRowStrategy(profile),
			NewTablePairStrategy(profile),
			NewDivStrategy(profile),
			NewTextBlockStrategy(profile),
			NewListStrategy(profile),
		},
	}
}

// NewExtractorWith builds an extractor from an explicit strategy list.
func NewExtractorWith(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Strategies returns the configured strategy names in execution order.
func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Collect runs every strategy and concatenates their output without
// deduplication.
func (e *Extractor) Collect(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var all []models.ListingCandidate
	for _, s := range e.strategies {
		found := s.Extract(doc, area)
		slog.Debug("strategy finished",
			slog.String("strategy", s.Name()),
			slog.String("area", string(area)),
			slog.Int("candidates", len(found)),
		)
		all = append(all, found...)
	}
	return all
}

// Extract runs every strategy and aggregates the pooled candidates.
func (e *Extractor) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	return Aggregate(e.Collect(doc, area))
}

// fields is the raw text a strategy recovered for one listing.
type fields struct {
	name      string
	address   string
	contact   string
	full      string // whole listing text, scanned for amenities and as a phone fallback
	detailURL string
}

type base struct {
	profile *config.SiteProfile
	name    string
}

func (b base) Name() string {
	return b.name
}

// candidate turns raw fields into a validated candidate. The second return is
// false when the validity gate rejects it.
func (b base) candidate(area models.AreaSpec, f fields) (models.ListingCandidate, bool) {
	c, err := b.build(area, f)
	if err != nil {
		slog.Debug("candidate dropped",
			slog.String("strategy", b.name),
			slog.String("area", string(area)),
			slog.Any("error", err),
		)
		return models.ListingCandidate{}, false
	}
	return c, true
}

func (b base) build(area models.AreaSpec, f fields) (models.ListingCandidate, error) {
	address, _ := parser.ParseAddress(f.address)
	contact, ok := parser.ParseContact(f.contact)
	if !ok {
		contact, _ = parser.ParseContact(f.full)
	}
	amenities, defaulted := parser.ExtractAmenities(f.full)

	c := models.ListingCandidate{
		Name:               parser.ParseName(f.name),
		Address:            address,
		Contact:            contact,
		Area:               area,
		Amenities:          amenities,
		AmenitiesDefaulted: defaulted,
		DetailPageURL:      f.detailURL,
		Source:             b.profile.Source,
		Strategy:           b.name,
	}
	if err := parser.ValidateCandidate(&c); err != nil {
		return models.ListingCandidate{}, err
	}
	return c, nil
}

// blockText returns the text of s with line breaks at block element
// boundaries, so adjacent headings and paragraphs do not run together.
func blockText(s *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range s.Nodes {
		writeBlockText(&sb, n)
	}
	return sb.String()
}

func writeBlockText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeBlockText(sb, c)
	}
	if block {
		sb.WriteByte('\n')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "address", "article", "br", "dd", "div", "dl", "dt", "h1", "h2", "h3", "h4", "h5", "h6",
		"header", "footer", "li", "ol", "p", "section", "table", "tbody", "td", "th", "tr", "ul":
		return true
	}
	return false
}

// resolveURL resolves ref against base. A nil base leaves ref unchanged.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
