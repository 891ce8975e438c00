package models

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var sizeSegment = regexp.MustCompile(`^\d+x\d+$`)

// Image is a listing photo. Full and Thumbnail stay nil until downloaded.
type Image struct {
	ID        uint   `gorm:"primaryKey"`
	URL       string `gorm:"uniqueIndex;size:512;not null"`
	Full      []byte
	Thumbnail []byte
}

func (Image) TableName() string { return "images" }

// Downloaded reports whether both renditions are stored.
func (i *Image) Downloaded() bool {
	return i.Full != nil && i.Thumbnail != nil
}

// ThumbnailURL swaps the trailing _WxH size segment for the 50x50 crop.
// URLs without a well-formed size segment are returned unchanged.
func (i *Image) ThumbnailURL() string {
	idx := strings.LastIndex(i.URL, "_")
	if idx < 0 {
		return i.URL
	}
	size := strings.TrimSuffix(i.URL[idx+1:], path.Ext(i.URL))
	if !sizeSegment.MatchString(size) {
		return i.URL
	}
	return i.URL[:idx] + "_50x50c.jpg"
}

// ExternalID is the image's path without the leading slash or the size segment,
// e.g. "00E0E_fUsmqInrJwB" for ".../00E0E_fUsmqInrJwB_600x450.jpg".
func (i *Image) ExternalID() string {
	p := i.URL
	if u, err := url.Parse(i.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimPrefix(p, "/")
	if idx := strings.LastIndex(p, "_"); idx >= 0 {
		return p[:idx]
	}
	return strings.TrimSuffix(p, path.Ext(p))
}
