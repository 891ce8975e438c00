package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental-pipeline/models"
)

// SaveSearch creates or updates a housing search.
func (r *Repository) SaveSearch(ctx context.Context, s *models.HousingSearch) error {
	if err := r.conn(ctx).Omit(clause.Associations).Save(s).Error; err != nil {
		return fmt.Errorf("save search %q: %w", s.Name, err)
	}
	return nil
}

// Searches lists all housing searches with their taxonomy.
func (r *Repository) Searches(ctx context.Context) ([]models.HousingSearch, error) {
	var out []models.HousingSearch
	err := r.conn(ctx).Preload("Site").Preload("Area.Site").Preload("Category").Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return out, nil
}

// ScrapeTargets returns one active search per distinct (area, category)
// pair; the first search by id supplies the filters.
func (r *Repository) ScrapeTargets(ctx context.Context, now time.Time) ([]models.HousingSearch, error) {
	searches, err := r.Searches(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[[2]uint]bool)
	var targets []models.HousingSearch
	for _, s := range searches {
		if s.Status(now) != models.SearchActive {
			continue
		}
		key := [2]uint{*s.AreaID, *s.CategoryID}
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, s)
	}
	return targets, nil
}

// SearchScope restricts a listing query to the search's price range,
// area, category and image requirement.
func SearchScope(s *models.HousingSearch) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.PriceMin != nil {
			db = db.Where("listings.price >= ?", *s.PriceMin)
		}
		if s.PriceMax != nil {
			db = db.Where("listings.price <= ?", *s.PriceMax)
		}
		if s.AreaID != nil {
			db = db.Where("listings.area_id = ?", *s.AreaID)
		}
		if s.CategoryID != nil {
			db = db.Where("listings.category_id = ?", *s.CategoryID)
		}
		if s.RequireImages {
			db = db.Where("EXISTS (SELECT 1 FROM listing_images li WHERE li.listing_id = listings.id)")
		}
		return db
	}
}

// MatchingListings returns listings satisfying the search predicate.
func (r *Repository) MatchingListings(ctx context.Context, s *models.HousingSearch) ([]models.Listing, error) {
	var out []models.Listing
	err := r.conn(ctx).Model(&models.Listing{}).Omit("page").Scopes(SearchScope(s)).Order("listings.id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("match search %q: %w", s.Name, err)
	}
	return out, nil
}
