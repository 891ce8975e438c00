package models

import (
	"strconv"
	"time"
)

// UserListingInfo holds the user's decisions about a listing. A missing row
// means the listing has not been rejected.
type UserListingInfo struct {
	ID        uint   `gorm:"primaryKey"`
	ListingID uint   `gorm:"uniqueIndex;not null"`
	Rejected  bool   `gorm:"not null"`
	Starred   bool   `gorm:"not null"`
	Contacted bool   `gorm:"not null"`
	Notes     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (UserListingInfo) TableName() string { return "user_listing_infos" }

// ListingScore is created the first time a listing is scored and overwritten
// on every re-score. Reads never create it.
type ListingScore struct {
	ID        uint               `gorm:"primaryKey"`
	ListingID uint               `gorm:"uniqueIndex;not null"`
	Total     float64            `gorm:"index;not null"`
	Breakdown map[string]float64 `gorm:"serializer:json"`
	ScoredAt  time.Time
}

func (ListingScore) TableName() string { return "listing_scores" }

func formatWhole(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}
