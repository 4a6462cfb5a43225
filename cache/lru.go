package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// LRU is an in-process PageCache bounded by entry count.
type LRU struct {
	entries *lru.Cache[string, []models.ImageAsset]
}

// NewLRU returns an LRU holding at most size pages.
func NewLRU(size int) (*LRU, error) {
	entries, err := lru.New[string, []models.ImageAsset](size)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &LRU{entries: entries}, nil
}

func (c *LRU) Get(_ context.Context, url string) ([]models.ImageAsset, bool, error) {
	images, ok := c.entries.Get(url)
	if !ok {
		return nil, false, nil
	}
	return cloneImages(images), true, nil
}

func (c *LRU) Set(_ context.Context, url string, images []models.ImageAsset) error {
	c.entries.Add(url, cloneImages(images))
	return nil
}

// Len reports the number of cached pages.
func (c *LRU) Len() int {
	return c.entries.Len()
}

func (c *LRU) Close() error {
	c.entries.Purge()
	return nil
}
