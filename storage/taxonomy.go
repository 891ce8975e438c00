package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rental-pipeline/models"
)

// EnsureSite returns the named site, creating it (enabled) if missing.
func (r *Repository) EnsureSite(ctx context.Context, name string) (*models.Site, error) {
	site := models.Site{Name: name}
	err := r.conn(ctx).Where(models.Site{Name: name}).Attrs(models.Site{Enabled: true}).FirstOrCreate(&site).Error
	if err != nil {
		return nil, fmt.Errorf("ensure site %q: %w", name, err)
	}
	return &site, nil
}

// EnsureArea returns the named area of site, creating it if missing.
func (r *Repository) EnsureArea(ctx context.Context, site *models.Site, name string) (*models.Area, error) {
	area := models.Area{SiteID: site.ID, Name: name}
	if err := r.conn(ctx).Where(models.Area{SiteID: site.ID, Name: name}).FirstOrCreate(&area).Error; err != nil {
		return nil, fmt.Errorf("ensure area %q of %q: %w", name, site.Name, err)
	}
	area.Site = site
	return &area, nil
}

// EnsureCategory returns the named category, creating it if missing.
func (r *Repository) EnsureCategory(ctx context.Context, name, description string) (*models.Category, error) {
	c := models.Category{Name: name}
	if err := r.conn(ctx).Where(models.Category{Name: name}).Attrs(models.Category{Description: description}).FirstOrCreate(&c).Error; err != nil {
		return nil, fmt.Errorf("ensure category %q: %w", name, err)
	}
	return &c, nil
}

// SiteByName looks up a site; unknown names are validation errors.
func (r *Repository) SiteByName(ctx context.Context, name string) (*models.Site, error) {
	var site models.Site
	err := r.conn(ctx).Where("name = ?", name).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.ValidationError{Field: "site", Value: name, Msg: "unknown site"}
	}
	if err != nil {
		return nil, fmt.Errorf("load site %q: %w", name, err)
	}
	return &site, nil
}

// AreaByName looks up an area within site; unknown names are validation errors.
func (r *Repository) AreaByName(ctx context.Context, site *models.Site, name string) (*models.Area, error) {
	var area models.Area
	err := r.conn(ctx).Where("site_id = ? AND name = ?", site.ID, name).First(&area).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.ValidationError{Field: "area", Value: name, Msg: fmt.Sprintf("unknown area for site %s", site.Name)}
	}
	if err != nil {
		return nil, fmt.Errorf("load area %q: %w", name, err)
	}
	area.Site = site
	return &area, nil
}

// CategoryByName looks up a category; unknown names are validation errors.
func (r *Repository) CategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	err := r.conn(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.ValidationError{Field: "category", Value: name, Msg: "unknown category"}
	}
	if err != nil {
		return nil, fmt.Errorf("load category %q: %w", name, err)
	}
	return &c, nil
}

// AssignTaxonomy resolves ref and attaches site, area and category to l.
// Any unknown name or site/area mismatch fails without touching l.
func (r *Repository) AssignTaxonomy(ctx context.Context, l *models.Listing, ref models.TaxonomyRef) error {
	site, err := r.SiteByName(ctx, ref.Site)
	if err != nil {
		return err
	}
	area, err := r.AreaByName(ctx, site, ref.Area)
	if err != nil {
		return err
	}
	category, err := r.CategoryByName(ctx, ref.Category)
	if err != nil {
		return err
	}

	staged := *l
	staged.Site, staged.SiteID, staged.Area, staged.AreaID = nil, nil, nil, nil
	if err := staged.SetSite(site); err != nil {
		return err
	}
	if err := staged.SetArea(area); err != nil {
		return err
	}
	if err := staged.SetCategory(category); err != nil {
		return err
	}
	*l = staged
	return nil
}

// Sites lists all sites with their areas.
func (r *Repository) Sites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := r.conn(ctx).Preload("Areas").Order("name").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}
