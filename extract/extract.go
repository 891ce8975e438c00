// Package extract pulls structured listing attributes out of a detail page.
package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// Extractor parses listing detail pages. It performs no I/O.
type Extractor struct {
	logger *utils.Logger
}

// New creates an Extractor that reports sub-parse failures to logger.
func New(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger.With("extract")}
}

// Extract parses doc. Attributes that are missing or malformed are left nil;
// an error is returned only when doc cannot be parsed at all.
func (e *Extractor) Extract(doc []byte) (*models.ListingFields, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("extract: parse document: %w", err)
	}

	fields := &models.ListingFields{}
	e.geotag(page, fields)
	e.images(page, fields)
	fields.Text = strings.TrimSpace(page.Find("section#postingbody").First().Text())
	e.attributes(page, fields)
	return fields, nil
}

func (e *Extractor) geotag(page *goquery.Document, f *models.ListingFields) {
	m := page.Find("div#map").First()
	if m.Length() == 0 {
		return
	}
	latAttr, okLat := m.Attr("data-latitude")
	lonAttr, okLon := m.Attr("data-longitude")
	if !okLat || !okLon {
		return
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latAttr), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(lonAttr), 64)
	if err1 != nil || err2 != nil {
		e.logger.Warn("can't parse geotag %q,%q", latAttr, lonAttr)
		return
	}
	f.Lat, f.Lon = &lat, &lon
}

func (e *Extractor) images(page *goquery.Document, f *models.ListingFields) {
	seen := utils.NewKeySet()
	add := func(url string) {
		url = strings.TrimSpace(url)
		if url != "" && seen.Add(url) {
			f.Images = append(f.Images, url)
		}
	}

	page.Find("div#thumbs a.thumb").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	if len(f.Images) == 0 {
		page.Find("div.gallery img").Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok {
				add(src)
			}
		})
	}
	if len(f.Images) == 0 {
		e.logger.Warn("no images found")
	} else {
		e.logger.Debug("found %d images", len(f.Images))
	}
}

func (e *Extractor) attributes(page *goquery.Document, f *models.ListingFields) {
	tags := utils.NewKeySet()

	page.Find("div.mapAndAttrs p.attrgroup span").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("property_date") {
			raw, _ := s.Attr("data-date")
			available, err := models.ParseDate(raw)
			if err != nil {
				e.logger.Warn("can't parse availability date %q", raw)
				return
			}
			f.Available = &available
			return
		}

		text := strings.TrimSpace(s.Text())
		lower := strings.ToLower(text)

		switch {
		case strings.HasSuffix(text, "ft2"):
			size, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(text, "ft2")), 64)
			if err != nil {
				e.logger.Warn("can't parse size tag %q", text)
				return
			}
			f.Size = &size

		case strings.Contains(lower, "/") && strings.Contains(lower, "br") && strings.Contains(lower, "ba"):
			bedPart, bathPart, _ := strings.Cut(lower, "/")
			beds, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(bedPart, "br", "")))
			if err != nil {
				e.logger.Warn("can't parse bedroom tag %q", text)
			} else {
				f.Bedrooms = &beds
			}
			baths, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(bathPart, "ba", "")), 64)
			if err != nil {
				e.logger.Warn("can't parse bathroom tag %q", text)
			} else {
				f.Bathrooms = &baths
			}

		case text != "" && tags.Add(text):
			f.Tags = append(f.Tags, text)
		}
	})
}
