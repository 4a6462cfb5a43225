// Package models defines data structures for the listing pipeline.
package models

import "time"

// AreaSpec identifies one area page on the origin site. It is used verbatim
// as a URL path segment.
type AreaSpec string

// Image sources recorded on a ResolvedListing.
const (
	ImageSourceDetailPage  = "detail_page"
	ImageSourceSpeculative = "speculative"
	ImageSourcePlaceholder = "placeholder"
)

// ListingCandidate is a record recovered by one extraction strategy.
type ListingCandidate struct {
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	Contact            string   `json:"contact,omitempty"`
	Area               AreaSpec `json:"area"`
	Amenities          []string `json:"amenities"`
	AmenitiesDefaulted bool     `json:"amenities_defaulted"`
	DetailPageURL      string   `json:"detail_page_url,omitempty"`
	Source             string   `json:"source"`
	Strategy           string   `json:"strategy"`
}

// ImageAsset is one photo attached to a listing.
type ImageAsset struct {
	URL         string `json:"url"`
	Alt         string `json:"alt,omitempty"`
	IsPrimary   bool   `json:"is_primary"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ResolvedListing is a deduplicated candidate with its images. It is the
// unit handed to the persistence sink and the exporters.
type ResolvedListing struct {
	ListingCandidate
	Images           []ImageAsset `json:"images"`
	ImageSource      string       `json:"image_source"`
	PlaceholderImage bool         `json:"placeholder_image"`
	ScrapedAt        time.Time    `json:"scraped_at"`
}

// PrimaryImage returns the primary image, or the zero value when none is set.
func (l *ResolvedListing) PrimaryImage() ImageAsset {
	for _, img := range l.Images {
		if img.IsPrimary {
			return img
		}
	}
	return ImageAsset{}
}

// StoredListing is what a persistence sink reports back for a listing.
type StoredListing struct {
	ID        int64
	Title     string
	Address   string
	CreatedAt time.Time
}

// RunStatistics are the counters of one crawl run. Errors counts both failed
// areas and failed persistence calls; AreasFailed isolates the former.
type RunStatistics struct {
	Processed      int `json:"processed"`
	Saved          int `json:"saved"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
	AreasProcessed int `json:"areas_processed"`
	AreasFailed    int `json:"areas_failed"`
	Candidates     int `json:"candidates"`
	Duplicates     int `json:"duplicates"`
}

// CrawlResult holds the overall result of a crawl run.
type CrawlResult struct {
	Listings     []*ResolvedListing
	Stats        RunStatistics
	StartTime    time.Time
	EndTime      time.Time
	FailedAreas  []AreaSpec
	ErrorsByType map[string]int
	RequestCount int
	RetryCount   int
}
