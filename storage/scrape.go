package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-pipeline/models"
)

// ScrapeTarget names what a new ScrapeRecord should scrape. Exactly one of
// Area or (AreaName with SiteName) must be given.
type ScrapeTarget struct {
	Area         *models.Area
	AreaName     string
	SiteName     string
	CategoryName string
}

// NewScrapeRecord validates target and stores a pending record.
func (r *Repository) NewScrapeRecord(ctx context.Context, target ScrapeTarget) (*models.ScrapeRecord, error) {
	byName := target.AreaName != "" || target.SiteName != ""
	switch {
	case target.Area != nil && byName:
		return nil, errors.New("scrape record: give either an area or area and site names, not both")
	case target.Area == nil && (target.AreaName == "" || target.SiteName == ""):
		return nil, errors.New("scrape record: area and site names are both required")
	}

	area := target.Area
	if area == nil {
		site, err := r.SiteByName(ctx, target.SiteName)
		if err != nil {
			return nil, err
		}
		if area, err = r.AreaByName(ctx, site, target.AreaName); err != nil {
			return nil, err
		}
	}
	category, err := r.CategoryByName(ctx, target.CategoryName)
	if err != nil {
		return nil, err
	}

	rec := &models.ScrapeRecord{AreaID: area.ID, CategoryID: category.ID, Status: models.ScrapePending}
	if err := r.conn(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create scrape record: %w", err)
	}
	rec.Area, rec.Category = area, category
	return rec, nil
}

// GetScrapeRecord loads a record with its area, site and category.
func (r *Repository) GetScrapeRecord(ctx context.Context, id uint) (*models.ScrapeRecord, error) {
	var rec models.ScrapeRecord
	if err := r.conn(ctx).Preload("Area.Site").Preload("Category").First(&rec, id).Error; err != nil {
		return nil, notFound(err, "scrape record", id)
	}
	return &rec, nil
}

// StartScrape advances a record to started before its pipelines are
// dispatched and adds records to its count. A finished record is rejected.
func (r *Repository) StartScrape(ctx context.Context, id uint, records int, now time.Time) error {
	return r.advanceScrape(ctx, id, models.ScrapeStarted, now, func(rec *models.ScrapeRecord) error {
		rec.Records += records
		return nil
	})
}

// StampScrape records the token of the group dispatched for a started
// record. Re-dispatching a started record replaces its token.
func (r *Repository) StampScrape(ctx context.Context, id uint, groupID string) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		var rec models.ScrapeRecord
		if err := tx.db.First(&rec, id).Error; err != nil {
			return notFound(err, "scrape record", id)
		}
		if rec.Status != models.ScrapeStarted {
			return fmt.Errorf("scrape record %d: cannot stamp a %s record", id, rec.Status)
		}
		rec.Result = groupID
		if err := tx.db.Save(&rec).Error; err != nil {
			return fmt.Errorf("save scrape record %d: %w", id, err)
		}
		return nil
	})
}

// FinishScrape advances a started record to finished when groupID is still
// its latest dispatched group. It reports false, leaving the record
// started, when a later dispatch has replaced the token.
func (r *Repository) FinishScrape(ctx context.Context, id uint, groupID string, now time.Time) (bool, error) {
	finished := false
	err := r.advanceScrape(ctx, id, models.ScrapeFinished, now, func(rec *models.ScrapeRecord) error {
		if rec.Result != groupID {
			return errSuperseded
		}
		finished = true
		return nil
	})
	if errors.Is(err, errSuperseded) {
		return false, nil
	}
	return finished, err
}

var errSuperseded = errors.New("scrape group superseded")

func (r *Repository) advanceScrape(ctx context.Context, id uint, to models.ScrapeStatus, now time.Time, check func(*models.ScrapeRecord) error) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		var rec models.ScrapeRecord
		if err := tx.db.First(&rec, id).Error; err != nil {
			return notFound(err, "scrape record", id)
		}
		if err := check(&rec); err != nil {
			return err
		}
		if rec.Status != to {
			if err := rec.Advance(to, now); err != nil {
				return err
			}
		}
		if err := tx.db.Save(&rec).Error; err != nil {
			return fmt.Errorf("save scrape record %d: %w", id, err)
		}
		return nil
	})
}
