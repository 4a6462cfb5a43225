// Package cache remembers the images found behind a fetched page URL so
// speculative probes are not repeated across areas or runs.
package cache

import (
	"context"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// PageCache maps a page URL to the images extracted from it. An empty slice
// is a valid entry and records a page that yielded nothing.
type PageCache interface {
	Get(ctx context.Context, url string) ([]models.ImageAsset, bool, error)
	Set(ctx context.Context, url string, images []models.ImageAsset) error
	Close() error
}

func cloneImages(images []models.ImageAsset) []models.ImageAsset {
	if images == nil {
		return []models.ImageAsset{}
	}
	out := make([]models.ImageAsset, len(images))
	copy(out, images)
	return out
}
