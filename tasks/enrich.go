package tasks

import (
	"context"

	"rental-pipeline/location"
)

// LocationEnrich geofences a listing and links its nearest transit stop.
// It reports false when the listing fell outside every enabled bounding box
// and was deleted. Listings without coordinates are kept as they are.
func (r *Runner) LocationEnrich(ctx context.Context, id uint) (bool, error) {
	l, err := r.repo.GetListing(ctx, id)
	if err != nil {
		return false, err
	}
	if !l.HasLocation() {
		return true, nil
	}
	lat, lon := *l.Lat, *l.Lon

	if r.cfg.CheckBBox {
		boxes, err := r.repo.EnabledBoundingBoxes(ctx)
		if err != nil {
			return false, err
		}
		if len(boxes) > 0 && !location.InAnyBox(lat, lon, boxes) {
			r.logger.Info("Listing %d at (%.5f, %.5f) is outside every bounding box, deleting", id, lat, lon)
			if err := r.repo.DeleteListing(ctx, id); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	stops, err := r.repo.TransitStops(ctx)
	if err != nil {
		return false, err
	}
	stop, km, ok := location.NearestStop(lat, lon, stops)
	if !ok {
		return true, nil
	}
	r.logger.Debug("Listing %d is %.2f km from %s", id, km, stop.Name)
	return true, r.repo.SetTransitStop(ctx, id, stop.ID)
}

// ScoreListing scores a listing and stores the result, replacing any
// earlier score.
func (r *Runner) ScoreListing(ctx context.Context, id uint) (float64, error) {
	l, err := r.repo.GetListing(ctx, id)
	if err != nil {
		return 0, err
	}
	now := r.now()
	total, breakdown := r.scorer.Score(l, now)
	if err := r.repo.SaveScore(ctx, id, total, breakdown, now); err != nil {
		return 0, err
	}
	return total, nil
}
