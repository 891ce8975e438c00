package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"rental-pipeline/models"
)

// UpsertTransitStops inserts stops, updating name and position of known ones.
func (r *Repository) UpsertTransitStops(ctx context.Context, stops []models.TransitStop) (int, error) {
	if len(stops) == 0 {
		return 0, nil
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agency"}, {Name: "stop_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "lat", "lon"}),
	}).CreateInBatches(stops, 200).Error
	if err != nil {
		return 0, fmt.Errorf("upsert transit stops: %w", err)
	}
	return len(stops), nil
}

// TransitStops returns all stops in id order.
func (r *Repository) TransitStops(ctx context.Context) ([]models.TransitStop, error) {
	var stops []models.TransitStop
	if err := r.conn(ctx).Order("id").Find(&stops).Error; err != nil {
		return nil, fmt.Errorf("load transit stops: %w", err)
	}
	return stops, nil
}

// UpsertBoundingBoxes inserts boxes by name, updating the extent of known ones.
func (r *Repository) UpsertBoundingBoxes(ctx context.Context, boxes []models.BoundingBox) (int, error) {
	if len(boxes) == 0 {
		return 0, nil
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat_min", "lon_min", "lat_max", "lon_max", "enabled"}),
	}).Create(&boxes).Error
	if err != nil {
		return 0, fmt.Errorf("upsert bounding boxes: %w", err)
	}
	return len(boxes), nil
}

// EnabledBoundingBoxes returns the geofence in effect.
func (r *Repository) EnabledBoundingBoxes(ctx context.Context) ([]models.BoundingBox, error) {
	var boxes []models.BoundingBox
	if err := r.conn(ctx).Where("enabled = ?", true).Order("id").Find(&boxes).Error; err != nil {
		return nil, fmt.Errorf("load bounding boxes: %w", err)
	}
	return boxes, nil
}
