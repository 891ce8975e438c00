package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"rental-pipeline/models"
)

var summaryHeader = []string{
	"id", "external_id", "created", "name", "price", "bedrooms", "bathrooms",
	"size", "area", "transit_stop", "score", "expired", "url",
}

// CSVWriter writes one summary row per listing. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	loc    *time.Location
}

// NewCSVWriter creates (or truncates) the CSV file at path and writes the
// header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, loc *time.Location) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	if loc == nil {
		loc = time.UTC
	}
	return &CSVWriter{file: f, writer: w, loc: loc}, nil
}

// Write appends a row for each listing.
func (c *CSVWriter) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if err := c.writer.Write(summaryRow(l, c.loc)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func summaryRow(l *models.Listing, loc *time.Location) []string {
	row := []string{
		strconv.FormatUint(uint64(l.ID), 10),
		l.ExternalKey(),
		l.Created.In(loc).Format(models.CreatedLayout),
		l.Name,
		optFloat(l.Price),
		"",
		optFloat(l.Bathrooms),
		optFloat(l.Size),
		"",
		"",
		"",
		"",
		l.URL,
	}
	if l.Bedrooms != nil {
		row[5] = strconv.Itoa(*l.Bedrooms)
	}
	if l.Area != nil {
		row[8] = l.Area.Name
	}
	if l.TransitStop != nil {
		row[9] = l.TransitStop.Name
	}
	if l.Score != nil {
		row[10] = strconv.FormatFloat(l.Score.Total, 'f', 1, 64)
	}
	if l.Expired != nil {
		row[11] = l.Expired.In(loc).Format(models.CreatedLayout)
	}
	return row
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
