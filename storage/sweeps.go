package storage

import (
	"context"
	"fmt"
	"time"

	"rental-pipeline/models"
)

// ExpirationQuery selects listings due for an expiration check.
type ExpirationQuery struct {
	Limit          int
	Force          bool
	IncludeExpired bool
	Cooldown       time.Duration
	Now            time.Time
}

// ExpirationCandidates returns listing ids ordered never-checked first, then
// oldest latest-check first. Unless forced, listings checked within the
// cooldown are skipped.
func (r *Repository) ExpirationCandidates(ctx context.Context, q ExpirationQuery) ([]uint, error) {
	db := r.conn(ctx)
	latest := db.Model(&models.ListingExpirationCheck{}).
		Select("listing_id, MAX(created) AS last_checked").
		Group("listing_id")

	query := db.Model(&models.Listing{}).
		Joins("LEFT JOIN (?) AS lc ON lc.listing_id = listings.id", latest)
	if !q.IncludeExpired {
		query = query.Where("listings.expired IS NULL")
	}
	if !q.Force {
		query = query.Where("(lc.last_checked IS NULL OR lc.last_checked < ?)", q.Now.UTC().Add(-q.Cooldown))
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var ids []uint
	err := query.
		Order("CASE WHEN lc.last_checked IS NULL THEN 0 ELSE 1 END").
		Order("lc.last_checked ASC").
		Order("listings.id ASC").
		Pluck("listings.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("select expiration candidates: %w", err)
	}
	return ids, nil
}

// LatestChecks returns every audit row of a listing, newest first.
func (r *Repository) LatestChecks(ctx context.Context, listingID uint) ([]models.ListingExpirationCheck, error) {
	var checks []models.ListingExpirationCheck
	err := r.conn(ctx).Where("listing_id = ?", listingID).Order("created DESC").Order("id DESC").Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("load checks of listing %d: %w", listingID, err)
	}
	return checks, nil
}

// NotifyCandidates returns up to limit unexpired listings with a transit
// stop that were neither notified nor rejected, best score first and
// unscored last. A listing without a user record counts as not rejected.
func (r *Repository) NotifyCandidates(ctx context.Context, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	q := r.conn(ctx).Model(&models.Listing{}).
		Select("listings.*").
		Joins("LEFT JOIN user_listing_infos ui ON ui.listing_id = listings.id").
		Joins("LEFT JOIN listing_scores ls ON ls.listing_id = listings.id").
		Where("listings.transit_stop_id IS NOT NULL").
		Where("listings.notified = ?", false).
		Where("listings.expired IS NULL").
		Where("(ui.rejected IS NULL OR ui.rejected = ?)", false).
		Order("ls.total IS NULL").
		Order("ls.total DESC").
		Order("listings.id ASC").
		Preload("TransitStop").
		Preload("Score").
		Preload("Tags")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("select notify candidates: %w", err)
	}
	return listings, nil
}
