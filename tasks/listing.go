package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rental-pipeline/cache"
	"rental-pipeline/fetch"
	"rental-pipeline/models"
	"rental-pipeline/taskqueue"
)

// Ingest stores a raw result and returns the listing id. A listing already
// known by external id is returned untouched unless force is set, in which
// case its result-derived columns are overwritten. Tags and images are left
// to the download stage. Only the id is parsed before the lookup, so a
// known listing is returned even when the rest of the result no longer parses.
func (r *Runner) Ingest(ctx context.Context, raw models.RawResult, force bool) (uint, error) {
	externalID, err := models.ParseExternalID(raw.ID)
	if err != nil {
		return 0, err
	}

	existing, found, err := r.repo.FindListingByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if found && !force {
		r.logger.Debug("Listing %d already ingested as %d", externalID, existing.ID)
		return existing.ID, nil
	}

	l, ref, err := models.FromResult(raw, r.loc)
	if err != nil {
		return 0, err
	}

	if err := r.repo.AssignTaxonomy(ctx, l, r.withDefaults(ref)); err != nil {
		return 0, err
	}

	if r.cfg.CacheEnable {
		p := cache.Path(cache.KindListings, l.ExternalKey(), cache.ExtJSON)
		if !r.store.Exists(p) {
			if err := r.writeJSON(p, raw); err != nil {
				r.logger.Warn("Caching result %d failed: %v", l.ExternalID, err)
			}
		}
	}

	if found {
		overwriteScalars(existing, l)
		if err := r.repo.SaveListing(ctx, existing); err != nil {
			return 0, err
		}
		r.logger.Info("Re-ingested listing %d (%d)", existing.ID, existing.ExternalID)
		return existing.ID, nil
	}

	if err := r.repo.CreateListing(ctx, l); err != nil {
		return 0, err
	}
	r.logger.Info("Ingested listing %d (%d)", l.ID, l.ExternalID)
	return l.ID, nil
}

func overwriteScalars(dst, src *models.Listing) {
	dst.URL = src.URL
	dst.Name = src.Name
	dst.Location = src.Location
	dst.Created = src.Created
	dst.Price = src.Price
	if src.HasLocation() {
		dst.Lat, dst.Lon = src.Lat, src.Lon
	}
	dst.Site, dst.SiteID = src.Site, src.SiteID
	dst.Area, dst.AreaID = src.Area, src.AreaID
	dst.Category, dst.CategoryID = src.Category, src.CategoryID
}

func (r *Runner) withDefaults(ref models.TaxonomyRef) models.TaxonomyRef {
	if ref.Site == "" {
		ref.Site = r.cfg.Site
	}
	if ref.Area == "" {
		ref.Area = r.cfg.Area
	}
	if ref.Category == "" {
		ref.Category = r.cfg.Category
	}
	return ref
}

// DownloadListing fetches and extracts a listing's detail page. It is a
// no-op for listings that already have text unless force is set. Whatever
// happened is committed exactly once on the way out: a fresh fetch or an
// HTTP error records an expiration check, a cache hit does not.
func (r *Runner) DownloadListing(ctx context.Context, id uint, force bool) (err error) {
	l, err := r.repo.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if l.HasText() && !force {
		r.logger.Debug("Listing %d already downloaded", id)
		return nil
	}

	var (
		fields *models.ListingFields
		check  *models.ListingExpirationCheck
	)
	defer func() {
		if cerr := r.repo.CommitDownload(ctx, l, fields, check); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	p := cache.Path(cache.KindListings, l.ExternalKey(), cache.ExtHTML)
	resp, err := r.fetcher.Fetch(ctx, l.URL, p, r.cfg.CacheEnable, fmt.Sprintf("listing %d", l.ExternalID))
	if err != nil {
		if status, ok := fetch.StatusCode(err); ok {
			check = l.RecordCheck(status, r.now())
			if l.Expired != nil {
				r.logger.Info("Listing %d is gone (%d)", id, status)
			}
		}
		return err
	}
	if !resp.Cached {
		check = l.RecordCheck(resp.StatusCode, r.now())
	}

	page := string(resp.Body)
	l.Page = &page
	parsed, err := r.extractor.Extract(resp.Body)
	if err != nil {
		return fmt.Errorf("extract listing %d: %w", id, err)
	}
	l.ApplyFields(parsed)
	fields = parsed
	return nil
}

// DownloadImagesForListing dispatches one skewed download_image task per
// image still missing bytes (every image when forced) and returns the
// group token without waiting. Nothing to download returns "".
func (r *Runner) DownloadImagesForListing(ctx context.Context, id uint, force bool) (string, error) {
	ids, err := r.repo.ImagesForListing(ctx, id, force)
	if err != nil {
		return "", err
	}
	token, err := r.dispatchEach(ids, func(imageID uint) taskqueue.Work {
		return taskqueue.Signature{
			Task:      TaskDownloadImage,
			Payload:   ImagePayload{ID: imageID, Force: force},
			Countdown: r.skew(),
		}
	})
	if err != nil {
		return "", fmt.Errorf("dispatch images of listing %d: %w", id, err)
	}
	if token != "" {
		r.logger.Debug("Dispatched %d image downloads for listing %d as %s", len(ids), id, token)
	}
	return token, nil
}

// DownloadImage fetches the full and thumbnail renditions that are missing
// (both when forced) and stores them together.
func (r *Runner) DownloadImage(ctx context.Context, id uint, force bool) error {
	img, err := r.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	extID := img.ExternalID()
	full, thumbnail := img.Full, img.Thumbnail

	if full == nil || force {
		resp, err := r.fetcher.Fetch(ctx, img.URL, cache.Path(cache.KindImages, extID, cache.ExtFull),
			r.cfg.CacheEnable, "image "+extID)
		if err != nil {
			return err
		}
		full = resp.Body
	}
	if thumbnail == nil || force {
		resp, err := r.fetcher.Fetch(ctx, img.ThumbnailURL(), cache.Path(cache.KindImages, extID, cache.ExtThumbnail),
			r.cfg.CacheEnable, "thumbnail "+extID)
		if err != nil {
			return err
		}
		thumbnail = resp.Body
	}

	return r.repo.SaveImageBytes(ctx, id, full, thumbnail)
}

func (r *Runner) writeJSON(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return r.store.Write(p, data)
}
