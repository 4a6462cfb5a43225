package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// MemorySink keeps listings in a map. It is the default when no store is
// configured and backs tests.
type MemorySink struct {
	mu       sync.Mutex
	nextID   int64
	byKey    map[string]*models.StoredListing
	listings []*models.ResolvedListing
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{byKey: make(map[string]*models.StoredListing)}
}

func (s *MemorySink) FindByNaturalKey(ctx context.Context, title, address string) (*models.StoredListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byKey[naturalKey(title, address)]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

func (s *MemorySink) Create(ctx context.Context, listing *models.ResolvedListing) (*models.StoredListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, fmt.Errorf("listing is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey(listing.Name, listing.Address)
	if _, exists := s.byKey[key]; exists {
		return nil, fmt.Errorf("listing %q already exists", listing.Name)
	}
	s.nextID++
	stored := &models.StoredListing{
		ID:        s.nextID,
		Title:     listing.Name,
		Address:   listing.Address,
		CreatedAt: time.Now().UTC(),
	}
	s.byKey[key] = stored
	s.listings = append(s.listings, listing)

	out := *stored
	return &out, nil
}

// Listings returns the created listings in insertion order.
func (s *MemorySink) Listings() []*models.ResolvedListing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ResolvedListing, len(s.listings))
	copy(out, s.listings)
	return out
}

func (s *MemorySink) Close() error {
	return nil
}
