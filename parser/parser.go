package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-listings/models"
)

const (
	// MaxNameLength and MaxAddressLength are rune limits applied after
	// whitespace collapse.
	MaxNameLength    = 100
	MaxAddressLength = 200
	// MaxSlugLength bounds slugs used in speculative detail URLs.
	MaxSlugLength = 50

	minNameLength    = 5
	minAddressLength = 10
)

var (
	phoneRegexp = regexp.MustCompile(`\d{10}`)

	addressLabelRegexp  = regexp.MustCompile(`(?i)address\s*:`)
	landmarkLabelRegexp = regexp.MustCompile(`(?i)landmark\s*:`)
	// stopLabelRegexp ends an address at the next non-address field or at a
	// phone number, together with any "Call"/"Ph" word printed before it.
	stopLabelRegexp = regexp.MustCompile(`(?i)\b(?:contact|phone|ph|mobile|mob|call|email|e-mail|price|rent|tariff)\s*(?:no\.?)?\s*:|(?:\b(?:contact|phone|ph|mobile|mob|call)\s*(?:no\.?)?\s*[.:-]?\s*)?(?:\+91[\s-]?)?\d{10}`)
	// nameStopRegexp ends a name at the first address label or phone run.
	nameStopRegexp = regexp.MustCompile(`(?i)(?:address\s*:|landmark\s*:|\d{10})`)

	slugStripRegexp = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidationError reports a candidate that failed the validity gate.
type ValidationError struct {
	Field  string
	Length int
	Min    int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s too short: %d <= %d", e.Field, e.Length, e.Min)
}

// ValidateCandidate enforces the minimum name and address lengths.
func ValidateCandidate(c *models.ListingCandidate) error {
	if c == nil {
		return fmt.Errorf("candidate is nil")
	}
	if n := utf8.RuneCountInString(c.Name); n <= minNameLength {
		return &ValidationError{Field: "name", Length: n, Min: minNameLength}
	}
	if n := utf8.RuneCountInString(c.Address); n <= minAddressLength {
		return &ValidationError{Field: "address", Length: n, Min: minAddressLength}
	}
	return nil
}

// DedupKey builds the natural key two candidates share when they describe the
// same listing.
func DedupKey(name, address string) string {
	return strings.ToLower(name) + "-" + strings.ToLower(address)
}

// CollapseWhitespace trims and collapses internal whitespace runs to a single
// space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// ParseContact returns the first run of ten consecutive digits in text.
func ParseContact(text string) (string, bool) {
	match := phoneRegexp.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}

// ParseAddress prefers the text after an "Address:" label, then after a
// "Landmark:" label, and falls back to the whole text.
func ParseAddress(text string) (string, bool) {
	address := text
	if loc := addressLabelRegexp.FindStringIndex(text); loc != nil {
		address = text[loc[1]:]
	} else if loc := landmarkLabelRegexp.FindStringIndex(text); loc != nil {
		address = text[loc[1]:]
	}
	if loc := stopLabelRegexp.FindStringIndex(address); loc != nil {
		address = address[:loc[0]]
	}

	address = Truncate(CollapseWhitespace(address), MaxAddressLength)
	address = strings.TrimRight(address, " ,;-|")
	if address == "" {
		return "", false
	}
	return address, true
}

// ParseName takes the first non-empty line of text, cut before any address
// label or phone number.
func ParseName(text string) string {
	line := ""
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	if loc := nameStopRegexp.FindStringIndex(line); loc != nil {
		line = line[:loc[0]]
	}
	name := Truncate(CollapseWhitespace(line), MaxNameLength)
	return strings.TrimRight(name, " ,;:-|")
}

// Slugify lower-cases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	slug := slugStripRegexp.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}
