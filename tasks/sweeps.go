package tasks

import (
	"context"
	"fmt"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/storage"
	"rental-pipeline/taskqueue"
)

// CheckExpiration GETs the listing's page without the cache and records the
// status. A 404 marks the listing expired.
func (r *Runner) CheckExpiration(ctx context.Context, id uint) (int, error) {
	l, err := r.repo.GetListing(ctx, id)
	if err != nil {
		return 0, err
	}
	status, err := r.fetcher.Status(ctx, l.URL)
	if err != nil {
		return 0, err
	}
	if err := r.repo.RecordCheck(ctx, l, l.RecordCheck(status, r.now())); err != nil {
		return 0, err
	}
	r.logger.Debug("Listing %d answered %d", id, status)
	return status, nil
}

// CheckExpirations dispatches check_expiration for up to limit listings,
// never-checked first and then least recently checked. Listings checked
// within the cooldown are skipped unless forced.
func (r *Runner) CheckExpirations(ctx context.Context, limit int, force, includeExpired bool) (string, error) {
	ids, err := r.repo.ExpirationCandidates(ctx, storage.ExpirationQuery{
		Limit:          limit,
		Force:          force,
		IncludeExpired: includeExpired,
		Cooldown:       config.ExpirationCooldown,
		Now:            r.now(),
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("Checking expiration of %d listings", len(ids))
	return r.dispatchEach(ids, func(id uint) taskqueue.Work {
		return taskqueue.Signature{Task: TaskCheckExpiration, Payload: ListingPayload{ID: id}}
	})
}

// ExportListing writes the listing's JSON snapshot to the cache. An
// existing snapshot is kept unless forced. It reports whether it wrote.
func (r *Runner) ExportListing(ctx context.Context, id uint, force bool) (bool, error) {
	l, err := r.repo.GetListing(ctx, id)
	if err != nil {
		return false, err
	}
	p := cache.Path(cache.KindListings, l.ExternalKey(), cache.ExtJSON)
	if !force && r.store.Exists(p) {
		return false, nil
	}
	if err := r.writeJSON(p, l.ToResult(r.loc)); err != nil {
		return false, fmt.Errorf("export listing %d: %w", id, err)
	}
	return true, nil
}

// ExportListings fans export_listing out over every listing as a skewed group.
func (r *Runner) ExportListings(ctx context.Context, force bool) (string, error) {
	ids, err := r.repo.ListingIDs(ctx, false)
	if err != nil {
		return "", err
	}
	return r.dispatchEach(ids, func(id uint) taskqueue.Work {
		return taskqueue.Signature{
			Task:      TaskExportListing,
			Payload:   ListingPayload{ID: id, Force: force},
			Countdown: r.skew(),
		}
	})
}

// Notify sends the best unsent listings near transit and marks them
// notified. A send failure is returned and nothing is marked.
func (r *Runner) Notify(ctx context.Context) (int, error) {
	listings, err := r.repo.NotifyCandidates(ctx, r.cfg.MaxMail)
	if err != nil {
		return 0, err
	}
	if len(listings) == 0 {
		r.logger.Info("Nothing to notify")
		return 0, nil
	}

	if err := r.sender.Send(ctx, listings); err != nil {
		return 0, fmt.Errorf("send %d listings: %w", len(listings), err)
	}

	ids := make([]uint, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
	}
	if err := r.repo.MarkNotified(ctx, ids); err != nil {
		return 0, err
	}
	r.logger.Info("Notified %d listings", len(ids))
	return len(ids), nil
}
