package extract

import (
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// Aggregate keeps the first candidate for every natural key, preserving input
// order. It does not modify cands.
func Aggregate(cands []models.ListingCandidate) []models.ListingCandidate {
	if len(cands) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(cands))
	out := make([]models.ListingCandidate, 0, len(cands))
	for _, c := range cands {
		key := parser.DedupKey(c.Name, c.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Deduper remembers natural keys across calls so a listing printed on several
// area pages is kept once per run. It is safe for concurrent use.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Filter returns the candidates whose keys have not been seen before and how
// many were dropped.
func (d *Deduper) Filter(cands []models.ListingCandidate) ([]models.ListingCandidate, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := make([]models.ListingCandidate, 0, len(cands))
	dropped := 0
	for _, c := range cands {
		key := parser.DedupKey(c.Name, c.Address)
		if _, dup := d.seen[key]; dup {
			dropped++
			continue
		}
		d.seen[key] = struct{}{}
		kept = append(kept, c)
	}
	return kept, dropped
}

// Len reports how many distinct keys have been recorded.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
