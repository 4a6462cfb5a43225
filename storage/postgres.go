package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// PostgresSink stores listings in PostgreSQL through a pgx pool.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn, pings the server and migrates the schema.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) FindByNaturalKey(ctx context.Context, title, address string) (*models.StoredListing, error) {
	var stored models.StoredListing
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, address, created_at FROM listings WHERE title = $1 AND address = $2`,
		title, address,
	).Scan(&stored.ID, &stored.Title, &stored.Address, &stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return &stored, nil
}

func (s *PostgresSink) Create(ctx context.Context, listing *models.ResolvedListing) (stored *models.StoredListing, err error) {
	if listing == nil {
		return nil, fmt.Errorf("listing is nil")
	}
	amenities := listing.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	out := models.StoredListing{Title: listing.Name, Address: listing.Address}
	err = tx.QueryRow(ctx, `
		INSERT INTO listings (title, address, contact, area, amenities, amenities_defaulted,
			detail_page_url, source, strategy, image_source, placeholder_image, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		listing.Name, listing.Address, listing.Contact, string(listing.Area), amenities,
		listing.AmenitiesDefaulted, listing.DetailPageURL, listing.Source, listing.Strategy,
		listing.ImageSource, listing.PlaceholderImage, listing.ScrapedAt,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}

	batch := &pgx.Batch{}
	for i, img := range listing.Images {
		batch.Queue(`
			INSERT INTO listing_images (listing_id, position, url, alt, is_primary, placeholder)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			out.ID, i, img.URL, img.Alt, img.IsPrimary, img.Placeholder,
		)
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert images: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit listing: %w", err)
	}
	return &out, nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
