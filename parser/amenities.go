package parser

import (
	"regexp"
	"strings"
)

type amenityGroup struct {
	tag      string
	synonyms []string
}

// amenityVocabulary is the controlled amenity vocabulary. A group contributes
// its tag when any synonym starts a word of the lower-cased text, so "dth"
// does not fire inside "width".
var amenityVocabulary = []amenityGroup{
	{tag: "wifi", synonyms: []string{"wifi", "wi-fi", "internet", "high speed"}},
	{tag: "meals", synonyms: []string{"meals", "food", "breakfast", "lunch", "dinner", "veg food", "home cooked"}},
	{tag: "security", synonyms: []string{"security", "cctv", "guard", "biometric"}},
	{tag: "ac", synonyms: []string{"air condition", "a/c", "ac room", "ac rooms", "air-condition"}},
	{tag: "laundry", synonyms: []string{"laundry", "washing machine", "washing"}},
	{tag: "parking", synonyms: []string{"parking", "two wheeler", "bike park"}},
	{tag: "power_backup", synonyms: []string{"power backup", "power-backup", "generator", "inverter", "24x7 power"}},
	{tag: "housekeeping", synonyms: []string{"housekeeping", "house keeping", "room cleaning", "daily cleaning"}},
	{tag: "hot_water", synonyms: []string{"hot water", "geyser", "solar water"}},
	{tag: "tv", synonyms: []string{"television", "tv room", "led tv", "dth"}},
	{tag: "gym", synonyms: []string{"gym", "fitness"}},
	{tag: "fridge", synonyms: []string{"fridge", "refrigerator"}},
	{tag: "attached_bathroom", synonyms: []string{"attached bath", "attached washroom", "attached toilet"}},
	{tag: "furnished", synonyms: []string{"furnished", "wardrobe", "cupboard", "study table"}},
	{tag: "drinking_water", synonyms: []string{"ro water", "drinking water", "purified water", "aquaguard"}},
	{tag: "lift", synonyms: []string{"elevator", "lift facility", "with lift"}},
}

// amenityMatchers holds one compiled matcher per vocabulary group.
var amenityMatchers = compileAmenityMatchers(amenityVocabulary)

func compileAmenityMatchers(groups []amenityGroup) []*regexp.Regexp {
	matchers := make([]*regexp.Regexp, len(groups))
	for i, group := range groups {
		quoted := make([]string, len(group.synonyms))
		for j, synonym := range group.synonyms {
			quoted[j] = regexp.QuoteMeta(synonym)
		}
		matchers[i] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
	}
	return matchers
}

// DefaultAmenities is substituted when no keyword group matches.
var DefaultAmenities = []string{"wifi", "meals", "security"}

// ExtractAmenities returns the matched amenity tags in vocabulary order and
// reports whether the default set had to be substituted.
func ExtractAmenities(text string) ([]string, bool) {
	lower := strings.ToLower(text)
	var tags []string
	for i, group := range amenityVocabulary {
		if amenityMatchers[i].MatchString(lower) {
			tags = append(tags, group.tag)
		}
	}
	if len(tags) == 0 {
		return append([]string(nil), DefaultAmenities...), true
	}
	return tags, false
}

// ParseAmenities returns a non-empty amenity set for text.
func ParseAmenities(text string) []string {
	tags, _ := ExtractAmenities(text)
	return tags
}

// AmenityTags lists the controlled vocabulary in order.
func AmenityTags() []string {
	tags := make([]string, 0, len(amenityVocabulary))
	for _, group := range amenityVocabulary {
		tags = append(tags, group.tag)
	}
	return tags
}
