package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// SQLiteSink stores listings in a SQLite database file.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) FindByNaturalKey(ctx context.Context, title, address string) (*models.StoredListing, error) {
	var (
		stored    models.StoredListing
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, address, created_at FROM listings WHERE title = ? AND address = ?`,
		title, address,
	).Scan(&stored.ID, &stored.Title, &stored.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}
	if stored.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &stored, nil
}

func (s *SQLiteSink) Create(ctx context.Context, listing *models.ResolvedListing) (stored *models.StoredListing, err error) {
	if listing == nil {
		return nil, fmt.Errorf("listing is nil")
	}
	amenities, err := encodeAmenities(listing.Amenities)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO listings (title, address, contact, area, amenities, amenities_defaulted,
			detail_page_url, source, strategy, image_source, placeholder_image, scraped_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.Name, listing.Address, listing.Contact, string(listing.Area), amenities,
		listing.AmenitiesDefaulted, listing.DetailPageURL, listing.Source, listing.Strategy,
		listing.ImageSource, listing.PlaceholderImage, listing.ScrapedAt.UTC().Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("listing id: %w", err)
	}

	for i, img := range listing.Images {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO listing_images (listing_id, position, url, alt, is_primary, placeholder)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, img.URL, img.Alt, img.IsPrimary, img.Placeholder,
		); err != nil {
			return nil, fmt.Errorf("insert image: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit listing: %w", err)
	}
	return &models.StoredListing{ID: id, Title: listing.Name, Address: listing.Address, CreatedAt: now}, nil
}

// ImageCount returns the number of images stored for a listing id.
func (s *SQLiteSink) ImageCount(ctx context.Context, listingID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listing_images WHERE listing_id = ?`, listingID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
