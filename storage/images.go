package storage

import (
	"context"
	"fmt"

	"rental-pipeline/models"
)

// CreateImage inserts an image row by URL.
func (r *Repository) CreateImage(ctx context.Context, img *models.Image) error {
	if err := r.conn(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("create image %q: %w", img.URL, err)
	}
	return nil
}

// GetImage loads an image including its bytes.
func (r *Repository) GetImage(ctx context.Context, id uint) (*models.Image, error) {
	var img models.Image
	if err := r.conn(ctx).First(&img, id).Error; err != nil {
		return nil, notFound(err, "image", id)
	}
	return &img, nil
}

// SaveImageBytes stores both renditions in one write.
func (r *Repository) SaveImageBytes(ctx context.Context, id uint, full, thumbnail []byte) error {
	err := r.conn(ctx).Model(&models.Image{}).Where("id = ?", id).
		Updates(map[string]any{"full": full, "thumbnail": thumbnail}).Error
	if err != nil {
		return fmt.Errorf("save image %d: %w", id, err)
	}
	return nil
}

// ImagesForListing returns ids of the listing's images; unless force, only
// those missing either rendition.
func (r *Repository) ImagesForListing(ctx context.Context, listingID uint, force bool) ([]uint, error) {
	var ids []uint
	q := r.conn(ctx).Table("images").
		Joins("JOIN listing_images ON listing_images.image_id = images.id").
		Where("listing_images.listing_id = ?", listingID)
	if !force {
		q = q.Where("images.full IS NULL OR images.thumbnail IS NULL")
	}
	if err := q.Order("images.id").Pluck("images.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list images of listing %d: %w", listingID, err)
	}
	return ids, nil
}
