// Package storage persists resolved listings behind a natural-key upsert
// contract.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Sink is the durable side effect of a crawl. FindByNaturalKey returns nil
// with a nil error when no listing has the given title and address.
type Sink interface {
	FindByNaturalKey(ctx context.Context, title, address string) (*models.StoredListing, error)
	Create(ctx context.Context, listing *models.ResolvedListing) (*models.StoredListing, error)
	Close() error
}

// PersistenceError wraps a failed sink call.
type PersistenceError struct {
	Op    string
	Title string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Title, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Open picks a sink from dsn: "" or "memory" keeps listings in memory,
// postgres:// and postgresql:// URLs use Postgres, and sqlite:// URLs or bare
// file paths use SQLite.
func Open(ctx context.Context, dsn string) (Sink, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemorySink(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresSink(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteSink(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported store dsn %q", dsn)
	default:
		return NewSQLiteSink(ctx, dsn)
	}
}

func naturalKey(title, address string) string {
	return title + "\x00" + address
}
