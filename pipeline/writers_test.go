package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func sampleListing() *models.ResolvedListing {
	return &models.ResolvedListing{
		ListingCandidate: models.ListingCandidate{
			Name:          "SRI LUXURY PG",
			Address:       "5th Block, Koramangala Landmark: Near Metro",
			Contact:       "9876543210",
			Area:          "koramangala",
			Amenities:     []string{"wifi", "meals", "security"},
			DetailPageURL: "http://example.test/sri-luxury-pg.html",
			Source:        "pg-directory",
			Strategy:      "table-pair",
		},
		Images: []models.ImageAsset{
			{URL: "http://example.test/rooms/1.jpg", IsPrimary: true},
			{URL: "http://example.test/rooms/2.jpg"},
		},
		ImageSource: models.ImageSourceDetailPage,
		ScrapedAt:   time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.ResolvedListing{sampleListing()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if writer.Rows() != 1 {
		t.Fatalf("rows=%d, want 1", writer.Rows())
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if !reflect.DeepEqual(records[0], csvHeader) {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[4] != "wifi;meals;security" {
		t.Fatalf("amenities column = %q", row[4])
	}
	if row[6] != "http://example.test/rooms/1.jpg" {
		t.Fatalf("primary image column = %q", row[6])
	}
	if row[7] != "http://example.test/rooms/1.jpg;http://example.test/rooms/2.jpg" {
		t.Fatalf("images column = %q", row[7])
	}
}

func TestJSONWriterIsLossless(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	want := sampleListing()
	if err := writer.Write([]*models.ResolvedListing{want}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.ResolvedListing
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if !reflect.DeepEqual(&decoded, want) {
			t.Fatalf("decoded = %+v, want %+v", decoded, want)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestNewWriterFormats(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "listings.csv")

	writer, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.ResolvedListing{sampleListing()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(filepath.Join(dir, "out", "listings.jsonl")); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}

	if _, err := NewWriter("xml", csvPath); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if w, err := NewWriter("none", ""); err != nil || w.Write(nil) != nil {
		t.Fatalf("none writer should discard: %v", err)
	}
}

func TestJSONLPath(t *testing.T) {
	tests := map[string]string{
		"output/listings.csv": "output/listings.jsonl",
		"listings":            "listings.jsonl",
		"out.d/listings":      "out.d/listings.jsonl",
	}
	for in, want := range tests {
		if got := JSONLPath(in); got != want {
			t.Fatalf("JSONLPath(%q) = %q, want %q", in, got, want)
		}
	}
}
