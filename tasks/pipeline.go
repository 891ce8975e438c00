package tasks

import (
	"context"
	"fmt"
	"strconv"

	"rental-pipeline/models"
	"rental-pipeline/scraper"
	"rental-pipeline/taskqueue"
)

// NewListingPipeline describes the full treatment of one raw result:
// ingest, a skewed download, enrichment, scoring and image fan-out. Every
// stage after ingest works on the id the previous one produced.
func (r *Runner) NewListingPipeline(raw models.RawResult, force bool) taskqueue.Chain {
	return taskqueue.Chain{
		{Task: TaskIngest, Payload: IngestPayload{Result: raw, Force: force}},
		{Task: TaskDownloadListing, Payload: ListingPayload{Force: force}, Countdown: r.skew()},
		{Task: TaskLocationEnrich, Payload: ListingPayload{}},
		{Task: TaskScoreListing, Payload: ListingPayload{}},
		{Task: TaskDownloadImages, Payload: ListingPayload{Force: force}},
	}
}

// DispatchPipelines runs one pipeline per raw result as a single group.
func (r *Runner) DispatchPipelines(raw []models.RawResult, force bool, onSettle func(*taskqueue.GroupResult)) (*taskqueue.GroupResult, error) {
	group := make(taskqueue.Group, 0, len(raw))
	for _, res := range raw {
		group = append(group, r.NewListingPipeline(res, force))
	}
	return r.queue.DelayGroup(group, onSettle)
}

// Scrape pulls at most limit results for a scrape record's area and
// category, marks the record started, dispatches their pipelines as one
// group and stamps the record with that group's token. The record is
// finished once its latest group settles. A finished record is rejected
// before the source is queried. limit <= 0 uses MaxScrape; nil filters use
// the configured ones.
func (r *Runner) Scrape(ctx context.Context, recordID uint, filters map[string]string, limit int, force bool) (string, error) {
	rec, err := r.repo.GetScrapeRecord(ctx, recordID)
	if err != nil {
		return "", err
	}
	if rec.Status == models.ScrapeFinished {
		return "", &models.ValidationError{Field: "scrape record", Value: strconv.FormatUint(uint64(recordID), 10), Msg: "already finished"}
	}
	if limit <= 0 {
		limit = r.cfg.MaxScrape
	}
	if filters == nil {
		filters = r.cfg.Filters
	}

	q := scraper.Query{Area: rec.Area.Name, Category: rec.Category.Name, Filters: filters}
	if rec.Area.Site != nil {
		q.Site = rec.Area.Site.Name
	}
	it, err := r.source.Results(ctx, q)
	if err != nil {
		return "", fmt.Errorf("scrape %d: %w", recordID, err)
	}

	raw := r.cleaner.Clean(scraper.SafeIterate(ctx, it, limit, r.logger))
	for i := range raw {
		if raw[i].Site == "" {
			raw[i].Site = q.Site
		}
		if raw[i].Area == "" {
			raw[i].Area = q.Area
		}
		if raw[i].Category == "" {
			raw[i].Category = q.Category
		}
	}

	if err := r.repo.StartScrape(ctx, recordID, len(raw), r.now()); err != nil {
		return "", err
	}

	// The settle callback may fire before the token is stamped when the
	// group is empty or fast, so it waits to learn whether stamping worked.
	stamped := make(chan bool, 1)
	gr, err := r.DispatchPipelines(raw, force, func(gr *taskqueue.GroupResult) {
		if !<-stamped {
			return
		}
		completed, failed := gr.Counts()
		done, err := r.repo.FinishScrape(context.WithoutCancel(ctx), recordID, gr.ID, r.now())
		switch {
		case err != nil:
			r.logger.Error("Finishing scrape %d failed: %v", recordID, err)
		case !done:
			r.logger.Info("Scrape %d group %s settled after a newer dispatch, record left started", recordID, gr.ID)
		default:
			r.logger.Info("Scrape %d finished: %d pipelines completed, %d failed", recordID, completed, failed)
		}
	})
	if err != nil {
		return "", fmt.Errorf("scrape %d: %w", recordID, err)
	}

	if err := r.repo.StampScrape(ctx, recordID, gr.ID); err != nil {
		stamped <- false
		return "", err
	}
	stamped <- true

	r.logger.Info("Scrape %d of %s/%s/%s dispatched %d pipelines as %s",
		recordID, q.Site, q.Area, q.Category, len(raw), gr.ID)
	return gr.ID, nil
}

// EnsureDownloaded dispatches download and image fan-out for every listing
// never downloaded, or for every listing when forced.
func (r *Runner) EnsureDownloaded(ctx context.Context, force bool) (string, error) {
	ids, err := r.repo.ListingIDs(ctx, !force)
	if err != nil {
		return "", err
	}
	return r.dispatchEach(ids, func(id uint) taskqueue.Work {
		return taskqueue.Chain{
			{Task: TaskDownloadListing, Payload: ListingPayload{ID: id, Force: force}, Countdown: r.skew()},
			{Task: TaskDownloadImages, Payload: ListingPayload{Force: force}},
		}
	})
}

// LocateAll dispatches location_enrich over every listing.
func (r *Runner) LocateAll(ctx context.Context) (string, error) {
	return r.overAll(ctx, TaskLocationEnrich)
}

// ScoreAll dispatches score_listing over every listing.
func (r *Runner) ScoreAll(ctx context.Context) (string, error) {
	return r.overAll(ctx, TaskScoreListing)
}

func (r *Runner) overAll(ctx context.Context, task string) (string, error) {
	ids, err := r.repo.ListingIDs(ctx, false)
	if err != nil {
		return "", err
	}
	return r.dispatchEach(ids, func(id uint) taskqueue.Work {
		return taskqueue.Signature{Task: task, Payload: ListingPayload{ID: id}}
	})
}
