package services

import (
	"testing"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

func newTestLogger() *utils.Logger { return utils.NopLogger() }

func TestCleanerNormalisesText(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []models.RawResult{{
		ID: " 6123 ", URL: " https://x ", Name: "  Sunny \n 2BR\tflat ", Where: " (berkeley) ",
		Price: " $2,450 ", Site: " SFBay", Area: "EBY ", Category: "apa",
	}}

	got := c.Clean(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	r := got[0]
	if r.ID != "6123" || r.URL != "https://x" {
		t.Errorf("id/url not trimmed: %q %q", r.ID, r.URL)
	}
	if r.Name != "Sunny 2BR flat" {
		t.Errorf("Name = %q; want %q", r.Name, "Sunny 2BR flat")
	}
	if r.Price != "$2,450" {
		t.Errorf("Price = %q", r.Price)
	}
	if r.Site != "sfbay" || r.Area != "eby" {
		t.Errorf("taxonomy not normalised: %q %q", r.Site, r.Area)
	}
}

func TestCleanerNormaliseText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  hello  ", "hello"},
		{"a\n\tb", "a b"},
		{"", ""},
		{"one  two   three", "one two three"},
	}

	for _, tt := range tests {
		if got := normaliseText(tt.raw); got != tt.want {
			t.Errorf("normaliseText(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerDropsMissingIDOrURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []models.RawResult{
		{ID: "", URL: "https://x/1", Name: "No id"},
		{ID: "2", URL: "  ", Name: "No URL"},
		{ID: "3", URL: "https://x/3", Name: "Fine"},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Errorf("expected 1 result after dropping incomplete ones, got %d", len(cleaned))
	}
}

func TestCleanerDeduplicatesID(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []models.RawResult{
		{ID: "1", URL: "https://x/1", Name: "A"},
		{ID: "1", URL: "https://x/1-repost", Name: "B"},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 result after deduplication, got %d", len(cleaned))
	}
	if cleaned[0].Name != "A" {
		t.Errorf("kept %q; want the first occurrence", cleaned[0].Name)
	}
}
