package services

import (
	"strings"
	"unicode"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// Cleaner normalises raw search results before they enter the pipeline.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger.With("cleaner")}
}

// Clean trims and collapses whitespace, drops results without an id or URL,
// and keeps only the first result for each id.
func (c *Cleaner) Clean(raw []models.RawResult) []models.RawResult {
	seen := utils.NewKeySet()
	result := make([]models.RawResult, 0, len(raw))

	for _, r := range raw {
		r.ID = strings.TrimSpace(r.ID)
		r.URL = strings.TrimSpace(r.URL)
		if r.ID == "" || r.URL == "" {
			c.logger.Warn("Dropping result without id or URL: %q", r.Name)
			continue
		}
		if !seen.Add(r.ID) {
			c.logger.Debug("Duplicate id skipped: %s", r.ID)
			continue
		}

		r.Name = normaliseText(r.Name)
		r.Where = normaliseText(r.Where)
		r.Price = normaliseText(r.Price)
		r.Datetime = normaliseText(r.Datetime)
		r.Site = normaliseName(r.Site)
		r.Area = normaliseName(r.Area)
		r.Category = normaliseName(r.Category)

		result = append(result, r)
	}

	c.logger.Info("Cleaned %d → %d results (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func normaliseName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
