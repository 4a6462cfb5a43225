package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// TableRowStrategy reads listing rows out of any table. A 2-cell row is
// (details, address); a 3-cell row adds a contact cell.
type TableRowStrategy struct {
	base
}

// NewTableRowStrategy returns a table-row strategy bound to profile.
func NewTableRowStrategy(profile *config.SiteProfile) *TableRowStrategy {
	return &TableRowStrategy{base{profile: profile, name: StrategyTableRow}}
}

// Extract implements Strategy.
func (s *TableRowStrategy) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var out []models.ListingCandidate
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		tableRows(table).Each(func(_ int, row *goquery.Selection) {
			cells := row.ChildrenFiltered("td, th")
			n := cells.Length()
			if n != 2 && n != 3 {
				return
			}
			rowText := blockText(row)
			if !s.profile.HasMarker(rowText) {
				return
			}

			f := fields{
				name:    blockText(cells.Eq(0)),
				address: blockText(cells.Eq(1)),
				full:    rowText,
			}
			if n == 3 {
				f.contact = blockText(cells.Eq(2))
			}
			if c, ok := s.candidate(area, f); ok {
				out = append(out, c)
			}
		})
	})
	return out
}

// TablePairStrategy handles pages that print a listing name in one table and
// its details in the next. It is the only strategy that recovers detail page
// links, from the anchor in the contact cell.
type TablePairStrategy struct {
	base
	detailLink *regexp.Regexp
}

// NewTablePairStrategy returns a table-pair strategy bound to profile.
func NewTablePairStrategy(profile *config.SiteProfile) *TablePairStrategy {
	suffix := profile.DetailLinkSuffix
	if suffix == "" {
		suffix = ".html"
	}
	pattern := `(?i)<a\b[^>]*?\bhref\s*=\s*["']([^"']+?` + regexp.QuoteMeta(suffix) + `)["']`
	return &TablePairStrategy{
		base:       base{profile: profile, name: StrategyTablePair},
		detailLink: regexp.MustCompile(pattern),
	}
}

// Extract implements Strategy.
func (s *TablePairStrategy) Extract(doc *goquery.Document, area models.AreaSpec) []models.ListingCandidate {
	var out []models.ListingCandidate
	tables := doc.Find("table")
	for i := 0; i+1 < tables.Length(); i++ {
		title, ok := s.pairTitle(tables.Eq(i))
		if !ok {
			continue
		}
		detail := tables.Eq(i + 1)
		cells := tableRows(detail).ChildrenFiltered("td, th")
		if cells.Length() == 0 {
			continue
		}

		contactCell := cells.Last()
		detailCells := cells
		if cells.Length() > 1 {
			detailCells = cells.Slice(0, cells.Length()-1)
		}

		var details []string
		detailCells.Each(func(_ int, cell *goquery.Selection) {
			details = append(details, blockText(cell))
		})

		f := fields{
			name:      title,
			address:   strings.Join(details, "\n"),
			contact:   blockText(contactCell),
			full:      title + "\n" + blockText(detail),
			detailURL: s.detailURL(doc, contactCell),
		}
		if c, ok := s.candidate(area, f); ok {
			out = append(out, c)
		}
		i++ // the detail table cannot start another pair
	}
	return out
}

// pairTitle accepts a table holding exactly one single-cell row whose text
// carries a marker and is short enough to be a name.
func (s *TablePairStrategy) pairTitle(table *goquery.Selection) (string, bool) {
	rows := tableRows(table)
	if rows.Length() != 1 {
		return "", false
	}
	cells := rows.ChildrenFiltered("td, th")
	if cells.Length() != 1 || cells.Find("table").Length() > 0 {
		return "", false
	}
	text := parser.CollapseWhitespace(cells.Text())
	if text == "" || utf8.RuneCountInString(text) > 2*parser.MaxNameLength {
		return "", false
	}
	if !s.profile.HasMarker(text) {
		return "", false
	}
	return text, true
}

func (s *TablePairStrategy) detailURL(doc *goquery.Document, cell *goquery.Selection) string {
	raw, err := goquery.OuterHtml(cell)
	if err != nil {
		return ""
	}
	m := s.detailLink.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return resolveURL(doc.Url, m[1])
}

// tableRows returns the rows that belong to table itself, skipping rows of
// nested tables.
func tableRows(table *goquery.Selection) *goquery.Selection {
	sections := table.ChildrenFiltered("thead, tbody, tfoot")
	return table.ChildrenFiltered("tr").AddSelection(sections.ChildrenFiltered("tr"))
}
