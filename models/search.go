package models

import "time"

// SearchStatus is derived from a HousingSearch's fields; it is never stored.
type SearchStatus string

const (
	SearchPending  SearchStatus = "PENDING"
	SearchActive   SearchStatus = "ACTIVE"
	SearchExpired  SearchStatus = "EXPIRED"
	SearchDisabled SearchStatus = "DISABLED"
)

// HousingSearch is a saved search that drives which (area, category) pairs get scraped.
type HousingSearch struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:255;not null"`
	Description    string `gorm:"type:text"`
	PriceMin       *float64
	PriceMax       *float64
	TargetDate     *time.Time
	ExpirationDate *time.Time
	RequireImages  bool `gorm:"not null"`
	Enabled        bool `gorm:"not null"`

	SiteID     *uint
	Site       *Site
	AreaID     *uint
	Area       *Area
	CategoryID *uint
	Category   *Category

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (HousingSearch) TableName() string { return "housing_searches" }

// Status derives the search state at now.
func (s *HousingSearch) Status(now time.Time) SearchStatus {
	switch {
	case !s.Enabled:
		return SearchDisabled
	case s.ExpirationDate != nil && s.ExpirationDate.Before(now):
		return SearchExpired
	case s.AreaID == nil || s.CategoryID == nil:
		return SearchPending
	default:
		return SearchActive
	}
}

// Filters are the source query parameters implied by the search.
func (s *HousingSearch) Filters() map[string]string {
	f := make(map[string]string)
	if s.PriceMin != nil {
		f["min_price"] = formatWhole(*s.PriceMin)
	}
	if s.PriceMax != nil {
		f["max_price"] = formatWhole(*s.PriceMax)
	}
	if s.RequireImages {
		f["hasPic"] = "1"
	}
	return f
}
