package models

import "strings"

// Site is a regional instance of the classifieds site, e.g. "sfbay".
type Site struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"uniqueIndex;size:64;not null"`
	Enabled bool   `gorm:"not null"`
	Areas   []Area
}

func (Site) TableName() string { return "sites" }

// URL is the site's base address.
func (s *Site) URL() string {
	return "https://" + s.Name + ".craigslist.org"
}

// Area is a sub-region that belongs to exactly one Site.
type Area struct {
	ID     uint   `gorm:"primaryKey"`
	SiteID uint   `gorm:"uniqueIndex:idx_area_site_name;not null"`
	Site   *Site  `gorm:"constraint:OnDelete:CASCADE"`
	Name   string `gorm:"uniqueIndex:idx_area_site_name;size:64;not null"`
}

func (Area) TableName() string { return "areas" }

// Category is a listing type, e.g. "apa".
type Category struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:64;not null"`
	Description string `gorm:"size:255"`
}

func (Category) TableName() string { return "categories" }

// Tag is a free-form attribute label, created the first time it is seen.
type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:255;not null"`
}

func (Tag) TableName() string { return "tags" }

var tagDisplay = strings.NewReplacer(
	"w/d in unit", "W/D in unit",
	"w/d hookups", "W/D hookups",
	"cats are OK - purrr", "cats OK",
	"dogs are OK - wooof", "dogs OK",
)

// DisplayName is a shortened label for notifications and reports.
func (t Tag) DisplayName() string {
	return tagDisplay.Replace(t.Name)
}

// HasTag reports whether the listing carries a tag with the given name.
func HasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if t.Name == name {
			return true
		}
	}
	return false
}
