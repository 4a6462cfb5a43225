package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SiteProfile isolates everything tied to one origin site's markup so the
// extractors can be pointed at a different directory with a new file.
type SiteProfile struct {
	Source               string   `yaml:"source"`
	Markers              []string `yaml:"markers"`
	TextBlockMinLength   int      `yaml:"text_block_min_length"`
	DetailLinkSuffix     string   `yaml:"detail_link_suffix"`
	ProbePatterns        []string `yaml:"probe_patterns"`
	GallerySelectors     []string `yaml:"gallery_selectors"`
	LazyImageAttrs       []string `yaml:"lazy_image_attrs"`
	ImageExtensions      []string `yaml:"image_extensions"`
	ImageExcludeKeywords []string `yaml:"image_exclude_keywords"`
	PlaceholderImageURL  string   `yaml:"placeholder_image_url"`
	MaxImages            int      `yaml:"max_images"`
}

// DefaultProfile returns the markers and URL patterns of the PG directory
// the pipeline was first written against.
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		Source:             "pg-directory",
		Markers:            []string{"PG", "LUXURY", "EXECUTIVE"},
		TextBlockMinLength: 100,
		DetailLinkSuffix:   ".html",
		ProbePatterns: []string{
			"{slug}-{area}.html",
			"{slug}-PG-in-{area}.html",
			"{slug}-Ladies-PG-in-{area}.html",
			"{slug}-Gents-PG-in-{area}.html",
		},
		GallerySelectors: []string{
			".gallery",
			".photos",
			".slider",
			".carousel",
			"[class*='gallery']",
			"[id*='gallery']",
			"[class*='photo']",
		},
		LazyImageAttrs:       []string{"data-src", "data-original", "data-lazy"},
		ImageExtensions:      []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		ImageExcludeKeywords: []string{"logo", "icon", "banner", "avatar", "profile"},
		PlaceholderImageURL:  "https://images.unsplash.com/photo-1522708323590-d24dbb6b0267?w=800",
		MaxImages:            5,
	}
}

// LoadProfile overlays the YAML file at path on DefaultProfile. Keys absent
// from the file keep their defaults.
func LoadProfile(path string) (*SiteProfile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return profile, nil
}

// Validate checks that the profile can drive the extractors.
func (p *SiteProfile) Validate() error {
	if strings.TrimSpace(p.Source) == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if len(p.Markers) == 0 {
		return fmt.Errorf("at least one marker is required")
	}
	for _, m := range p.Markers {
		if m == "" {
			return fmt.Errorf("markers cannot contain blanks")
		}
	}
	if p.TextBlockMinLength < 0 {
		return fmt.Errorf("text block min length cannot be negative")
	}
	for _, pattern := range p.ProbePatterns {
		if !strings.Contains(pattern, "{slug}") {
			return fmt.Errorf("probe pattern %q must contain {slug}", pattern)
		}
	}
	if len(p.ImageExtensions) == 0 {
		return fmt.Errorf("at least one image extension is required")
	}
	if p.PlaceholderImageURL == "" {
		return fmt.Errorf("placeholder image url cannot be empty")
	}
	if p.MaxImages <= 0 {
		return fmt.Errorf("max images must be positive")
	}
	return nil
}

// HasMarker reports whether text contains any configured marker. Matching is
// case-sensitive: the markers are the upper-case tags the site prints in
// listing titles.
func (p *SiteProfile) HasMarker(text string) bool {
	for _, m := range p.Markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
