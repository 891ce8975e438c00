package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental-pipeline/models"
)

func withoutBlobs(db *gorm.DB) *gorm.DB {
	return db.Select("id", "url")
}

// FindListingByExternalID reports whether a listing with the source id exists.
func (r *Repository) FindListingByExternalID(ctx context.Context, externalID int64) (*models.Listing, bool, error) {
	var l models.Listing
	err := r.conn(ctx).Where("external_id = ?", externalID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find listing %d: %w", externalID, err)
	}
	return &l, true, nil
}

// GetListing loads a listing with its taxonomy, tags, image URLs, transit stop
// and side records. Image bytes are not loaded.
func (r *Repository) GetListing(ctx context.Context, id uint) (*models.Listing, error) {
	var l models.Listing
	err := r.conn(ctx).
		Preload("Site").
		Preload("Area").
		Preload("Category").
		Preload("TransitStop").
		Preload("Tags").
		Preload("Images", withoutBlobs).
		Preload("UserInfo").
		Preload("Score").
		First(&l, id).Error
	if err != nil {
		return nil, notFound(err, "listing", id)
	}
	return &l, nil
}

// CreateListing inserts a new listing row. Relationships are referenced by id only.
func (r *Repository) CreateListing(ctx context.Context, l *models.Listing) error {
	if err := r.conn(ctx).Omit(clause.Associations).Create(l).Error; err != nil {
		return fmt.Errorf("create listing %d: %w", l.ExternalID, err)
	}
	return nil
}

// SaveListing writes the listing's scalar columns and foreign keys.
func (r *Repository) SaveListing(ctx context.Context, l *models.Listing) error {
	if err := r.conn(ctx).Omit(clause.Associations).Save(l).Error; err != nil {
		return fmt.Errorf("save listing %d: %w", l.ID, err)
	}
	return nil
}

// CommitDownload persists the outcome of one listing download in a single
// transaction: parsed fields with their tags and images, and the audit row.
// fields and check may each be nil.
func (r *Repository) CommitDownload(ctx context.Context, l *models.Listing, fields *models.ListingFields, check *models.ListingExpirationCheck) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		db := tx.db
		if err := db.Omit(clause.Associations).Save(l).Error; err != nil {
			return fmt.Errorf("save listing %d: %w", l.ID, err)
		}

		if fields != nil {
			tags, err := tx.ensureTags(fields.Tags)
			if err != nil {
				return err
			}
			if len(tags) > 0 {
				if err := db.Model(l).Association("Tags").Append(tags); err != nil {
					return fmt.Errorf("attach tags to listing %d: %w", l.ID, err)
				}
			}

			images, err := tx.ensureImages(fields.Images)
			if err != nil {
				return err
			}
			if len(images) > 0 {
				if err := db.Model(l).Association("Images").Append(images); err != nil {
					return fmt.Errorf("attach images to listing %d: %w", l.ID, err)
				}
			}
		}

		if check != nil {
			check.ListingID = l.ID
			if err := db.Create(check).Error; err != nil {
				return fmt.Errorf("record check for listing %d: %w", l.ID, err)
			}
		}
		return nil
	})
}

// RecordCheck stores an expiration audit row and the listing's expiry in one transaction.
func (r *Repository) RecordCheck(ctx context.Context, l *models.Listing, check *models.ListingExpirationCheck) error {
	return r.CommitDownload(ctx, l, nil, check)
}

func (r *Repository) ensureTags(names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name}
		if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
			return nil, fmt.Errorf("create tag %q: %w", name, err)
		}
		if err := r.db.Where("name = ?", name).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("load tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (r *Repository) ensureImages(urls []string) ([]models.Image, error) {
	images := make([]models.Image, 0, len(urls))
	for _, url := range urls {
		img := models.Image{URL: url}
		if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&img).Error; err != nil {
			return nil, fmt.Errorf("create image %q: %w", url, err)
		}
		if err := withoutBlobs(r.db).Where("url = ?", url).First(&img).Error; err != nil {
			return nil, fmt.Errorf("load image %q: %w", url, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// ListingIDs returns ids of all listings, or only those never downloaded.
func (r *Repository) ListingIDs(ctx context.Context, onlyMissingText bool) ([]uint, error) {
	var ids []uint
	q := r.conn(ctx).Model(&models.Listing{})
	if onlyMissingText {
		q = q.Where("text IS NULL")
	}
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list listing ids: %w", err)
	}
	return ids, nil
}

// CountListings returns the number of stored listings.
func (r *Repository) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&models.Listing{}).Count(&n).Error
	return n, err
}

// DeleteListing removes a listing with its join rows, side records, audit
// rows, and any images no other listing references.
func (r *Repository) DeleteListing(ctx context.Context, id uint) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		db := tx.db
		var imageIDs []uint
		if err := db.Table("listing_images").Where("listing_id = ?", id).Pluck("image_id", &imageIDs).Error; err != nil {
			return fmt.Errorf("list images of listing %d: %w", id, err)
		}

		steps := []struct {
			what string
			run  func() error
		}{
			{"tags", func() error { return db.Exec("DELETE FROM listing_tags WHERE listing_id = ?", id).Error }},
			{"images", func() error { return db.Exec("DELETE FROM listing_images WHERE listing_id = ?", id).Error }},
			{"user info", func() error { return db.Where("listing_id = ?", id).Delete(&models.UserListingInfo{}).Error }},
			{"score", func() error { return db.Where("listing_id = ?", id).Delete(&models.ListingScore{}).Error }},
			{"checks", func() error { return db.Where("listing_id = ?", id).Delete(&models.ListingExpirationCheck{}).Error }},
			{"listing", func() error { return db.Delete(&models.Listing{}, id).Error }},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("delete %s of listing %d: %w", step.what, id, err)
			}
		}

		if len(imageIDs) > 0 {
			err := db.Where("id IN ? AND id NOT IN (SELECT image_id FROM listing_images)", imageIDs).
				Delete(&models.Image{}).Error
			if err != nil {
				return fmt.Errorf("delete orphaned images of listing %d: %w", id, err)
			}
		}
		return nil
	})
}

// SetTransitStop links the listing to its nearest stop.
func (r *Repository) SetTransitStop(ctx context.Context, listingID, stopID uint) error {
	err := r.conn(ctx).Model(&models.Listing{}).Where("id = ?", listingID).
		Update("transit_stop_id", stopID).Error
	if err != nil {
		return fmt.Errorf("set transit stop of listing %d: %w", listingID, err)
	}
	return nil
}

// SaveScore creates or overwrites the listing's score side record.
func (r *Repository) SaveScore(ctx context.Context, listingID uint, total float64, breakdown map[string]float64, now time.Time) error {
	score := models.ListingScore{ListingID: listingID, Total: total, Breakdown: breakdown, ScoredAt: now.UTC()}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total", "breakdown", "scored_at"}),
	}).Create(&score).Error
	if err != nil {
		return fmt.Errorf("save score of listing %d: %w", listingID, err)
	}
	return nil
}

// SetUserInfo creates or updates the user's side record for a listing.
func (r *Repository) SetUserInfo(ctx context.Context, info *models.UserListingInfo) error {
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rejected", "starred", "contacted", "notes", "updated_at"}),
	}).Create(info).Error
	if err != nil {
		return fmt.Errorf("save user info of listing %d: %w", info.ListingID, err)
	}
	return nil
}

// MarkNotified flags listings as sent.
func (r *Repository) MarkNotified(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.conn(ctx).Model(&models.Listing{}).Where("id IN ?", ids).Update("notified", true).Error
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ListingsForReport loads every listing with area and score.
func (r *Repository) ListingsForReport(ctx context.Context) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.conn(ctx).Omit("page").Preload("Area").Preload("Score").Preload("TransitStop").Order("id").Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	return listings, nil
}
