package models

import (
	"fmt"
	"time"
)

// ScrapeStatus is the lifecycle of a ScrapeRecord. It only moves forward.
type ScrapeStatus int

const (
	ScrapePending ScrapeStatus = iota
	ScrapeStarted
	ScrapeFinished
)

func (s ScrapeStatus) String() string {
	switch s {
	case ScrapePending:
		return "pending"
	case ScrapeStarted:
		return "started"
	case ScrapeFinished:
		return "finished"
	default:
		return fmt.Sprintf("ScrapeStatus(%d)", int(s))
	}
}

// ScrapeRecord tracks one scrape of an (area, category) pair.
type ScrapeRecord struct {
	ID         uint `gorm:"primaryKey"`
	AreaID     uint `gorm:"index;not null"`
	Area       *Area
	CategoryID uint `gorm:"index;not null"`
	Category   *Category
	Status     ScrapeStatus `gorm:"not null;default:0"`
	Result     string       `gorm:"size:64"`
	Records    int          `gorm:"not null;default:0"`
	CreatedAt  time.Time
	ScrapedAt  *time.Time
}

func (ScrapeRecord) TableName() string { return "scrape_records" }

// Advance moves the record to a later status. Moving backwards or staying put is an error.
func (r *ScrapeRecord) Advance(to ScrapeStatus, now time.Time) error {
	if to <= r.Status {
		return fmt.Errorf("scrape record %d: cannot move from %s to %s", r.ID, r.Status, to)
	}
	r.Status = to
	if to == ScrapeStarted {
		at := now.UTC()
		r.ScrapedAt = &at
	}
	return nil
}
