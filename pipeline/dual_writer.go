package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// DualWriter exports every batch as both CSV and JSONL.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter creates the CSV and JSONL files.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Write writes listings to both outputs.
func (dw *DualWriter) Write(listings []*models.ResolvedListing) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(listings); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	if err := dw.jsonWriter.Write(listings); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv close: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json close: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("json: %w", err))
	}
	return errors.Join(errs...)
}

// DiscardWriter drops every batch. It backs the "none" output format.
type DiscardWriter struct{}

func (DiscardWriter) Write([]*models.ResolvedListing) error { return nil }
func (DiscardWriter) Close() error                          { return nil }
func (DiscardWriter) Validate() error                       { return nil }

// NewWriter opens the writer for format. filename is the CSV path for "csv"
// and "dual" and the JSONL path for "json"; "dual" writes the JSONL file
// next to the CSV with a .jsonl extension.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "dual":
		return NewDualWriter(filename, JSONLPath(filename))
	case "none", "":
		return DiscardWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONLPath swaps the extension of filename for .jsonl.
func JSONLPath(filename string) string {
	if i := strings.LastIndex(filename, "."); i > strings.LastIndex(filename, "/") {
		return filename[:i] + ".jsonl"
	}
	return filename + ".jsonl"
}
