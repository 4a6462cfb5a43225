package storage

import (
	"encoding/json"
	"fmt"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	title               TEXT    NOT NULL,
	address             TEXT    NOT NULL,
	contact             TEXT    NOT NULL DEFAULT '',
	area                TEXT    NOT NULL DEFAULT '',
	amenities           TEXT    NOT NULL DEFAULT '[]',
	amenities_defaulted INTEGER NOT NULL DEFAULT 0,
	detail_page_url     TEXT    NOT NULL DEFAULT '',
	source              TEXT    NOT NULL DEFAULT '',
	strategy            TEXT    NOT NULL DEFAULT '',
	image_source        TEXT    NOT NULL DEFAULT '',
	placeholder_image   INTEGER NOT NULL DEFAULT 0,
	scraped_at          TEXT    NOT NULL DEFAULT '',
	created_at          TEXT    NOT NULL,
	UNIQUE (title, address)
);

CREATE TABLE IF NOT EXISTS listing_images (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	listing_id  INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	url         TEXT    NOT NULL,
	alt         TEXT    NOT NULL DEFAULT '',
	is_primary  INTEGER NOT NULL DEFAULT 0,
	placeholder INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_listings_area ON listings(area);
CREATE INDEX IF NOT EXISTS idx_listing_images_listing ON listing_images(listing_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id                  BIGSERIAL   PRIMARY KEY,
	title               TEXT        NOT NULL,
	address             TEXT        NOT NULL,
	contact             TEXT        NOT NULL DEFAULT '',
	area                TEXT        NOT NULL DEFAULT '',
	amenities           TEXT[]      NOT NULL DEFAULT '{}',
	amenities_defaulted BOOLEAN     NOT NULL DEFAULT FALSE,
	detail_page_url     TEXT        NOT NULL DEFAULT '',
	source              TEXT        NOT NULL DEFAULT '',
	strategy            TEXT        NOT NULL DEFAULT '',
	image_source        TEXT        NOT NULL DEFAULT '',
	placeholder_image   BOOLEAN     NOT NULL DEFAULT FALSE,
	scraped_at          TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (title, address)
);

CREATE TABLE IF NOT EXISTS listing_images (
	id          BIGSERIAL PRIMARY KEY,
	listing_id  BIGINT    NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	position    INTEGER   NOT NULL,
	url         TEXT      NOT NULL,
	alt         TEXT      NOT NULL DEFAULT '',
	is_primary  BOOLEAN   NOT NULL DEFAULT FALSE,
	placeholder BOOLEAN   NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_listings_area ON listings(area);
CREATE INDEX IF NOT EXISTS idx_listing_images_listing ON listing_images(listing_id);
`

func encodeAmenities(amenities []string) (string, error) {
	if amenities == nil {
		amenities = []string{}
	}
	raw, err := json.Marshal(amenities)
	if err != nil {
		return "", fmt.Errorf("encode amenities: %w", err)
	}
	return string(raw), nil
}
