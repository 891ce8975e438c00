package models

import "time"

// RawResult is one search result as produced by a listing source and as
// written to the cache. Only these keys are ever read; anything else the
// source emits is dropped at decode time.
type RawResult struct {
	ID       string      `json:"id"`
	Datetime string      `json:"datetime"`
	Where    string      `json:"where"`
	URL      string      `json:"url"`
	Name     string      `json:"name"`
	Price    string      `json:"price"`
	Geotag   *[2]float64 `json:"geotag"`
	HasImage bool        `json:"has_image,omitempty"`
	Site     string      `json:"site,omitempty"`
	Area     string      `json:"area,omitempty"`
	Category string      `json:"category,omitempty"`
}

// TaxonomyRef names the site, area and category a listing should belong to.
type TaxonomyRef struct {
	Site     string
	Area     string
	Category string
}

// ListingFields is what the content extractor pulls out of a detail page.
// Nil pointers mean the attribute was missing or failed to parse.
type ListingFields struct {
	Lat       *float64
	Lon       *float64
	Available *time.Time
	Size      *float64
	Bedrooms  *int
	Bathrooms *float64
	Images    []string
	Tags      []string
	Text      string
}
