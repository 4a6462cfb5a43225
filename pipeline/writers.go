package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// csvHeader is the flattened export layout. Amenities and image URLs are
// joined with ";".
var csvHeader = []string{
	"name", "address", "contact", "area", "amenities", "amenities_defaulted",
	"primary_image", "images", "image_source", "placeholder_image",
	"detail_page_url", "source", "strategy", "scraped_at",
}

// exportFile is the file handle shared by the CSV and JSONL writers.
type exportFile struct {
	kind string
	file *os.File
	mu   sync.Mutex
	rows int
}

func openExport(kind, filename string) (*exportFile, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return &exportFile{kind: kind, file: f}, nil
}

// Rows reports how many listings were written.
func (e *exportFile) Rows() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows
}

// Validate fails when nothing reached the file.
func (e *exportFile) Validate() error {
	info, err := e.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", e.kind, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s file %s is empty", e.kind, e.file.Name())
	}
	return nil
}

// CSVWriter exports one flattened row per listing.
type CSVWriter struct {
	*exportFile
	writer *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := openExport("csv", filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{exportFile: out, writer: csv.NewWriter(out.file)}
	if err := cw.flushRows([][]string{csvHeader}); err != nil {
		out.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

func (cw *CSVWriter) Write(listings []*models.ResolvedListing) error {
	rows := make([][]string, 0, len(listings))
	for _, listing := range listings {
		rows = append(rows, csvRecord(listing))
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.flushRows(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	cw.rows += len(rows)
	return nil
}

func (cw *CSVWriter) flushRows(rows [][]string) error {
	if err := cw.writer.WriteAll(rows); err != nil {
		return err
	}
	return cw.writer.Error()
}

func csvRecord(l *models.ResolvedListing) []string {
	urls := make([]string, len(l.Images))
	for i, img := range l.Images {
		urls[i] = img.URL
	}
	return []string{
		l.Name,
		l.Address,
		l.Contact,
		string(l.Area),
		strings.Join(l.Amenities, ";"),
		strconv.FormatBool(l.AmenitiesDefaulted),
		l.PrimaryImage().URL,
		strings.Join(urls, ";"),
		l.ImageSource,
		strconv.FormatBool(l.PlaceholderImage),
		l.DetailPageURL,
		l.Source,
		l.Strategy,
		l.ScrapedAt.Format(time.RFC3339),
	}
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// JSONWriter exports listings as JSON Lines, one full record per line.
type JSONWriter struct {
	*exportFile
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := openExport("json", filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out.file)
	return &JSONWriter{exportFile: out, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (jw *JSONWriter) Write(listings []*models.ResolvedListing) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, listing := range listings {
		if err := jw.enc.Encode(listing); err != nil {
			return fmt.Errorf("encode %q: %w", listing.Name, err)
		}
		jw.rows++
	}
	return jw.buf.Flush()
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}
