// Package tasks holds the pipeline's task handlers and the composer that
// wires them into chains and groups on a taskqueue.Queue.
package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/extract"
	"rental-pipeline/fetch"
	"rental-pipeline/models"
	"rental-pipeline/notify"
	"rental-pipeline/score"
	"rental-pipeline/scraper"
	"rental-pipeline/services"
	"rental-pipeline/storage"
	"rental-pipeline/taskqueue"
	"rental-pipeline/utils"
)

// Registered task names.
const (
	TaskIngest          = "ingest_listing"
	TaskDownloadListing = "download_listing"
	TaskLocationEnrich  = "location_enrich"
	TaskScoreListing    = "score_listing"
	TaskDownloadImages  = "download_images_for_listing"
	TaskDownloadImage   = "download_image"
	TaskCheckExpiration = "check_expiration"
	TaskExportListing   = "export_listing"
	TaskScrape          = "scrape"
)

// IngestPayload is the payload of ingest_listing.
type IngestPayload struct {
	Result models.RawResult
	Force  bool
}

// ListingPayload addresses one listing. A zero ID means the id produced by
// the previous chain stage.
type ListingPayload struct {
	ID    uint
	Force bool
}

// ImagePayload is the payload of download_image.
type ImagePayload struct {
	ID    uint
	Force bool
}

// ScrapePayload is the payload of scrape.
type ScrapePayload struct {
	RecordID uint
	Filters  map[string]string
	Limit    int
	Force    bool
}

// Runner executes the pipeline's tasks against shared collaborators.
type Runner struct {
	cfg       *config.Config
	loc       *time.Location
	repo      *storage.Repository
	fetcher   *fetch.Fetcher
	store     *cache.Store
	queue     *taskqueue.Queue
	extractor *extract.Extractor
	scorer    *score.Scorer
	sender    notify.Sender
	source    scraper.Source
	cleaner   *services.Cleaner
	logger    *utils.Logger
	now       func() time.Time
}

// Option customises a Runner.
type Option func(*Runner)

// WithSender replaces the notification sender. The default only logs.
func WithSender(s notify.Sender) Option { return func(r *Runner) { r.sender = s } }

// WithSource replaces the raw result source. The default reads search pages
// through the fetcher.
func WithSource(s scraper.Source) Option { return func(r *Runner) { r.source = s } }

// WithScorer replaces the scorer built from configuration.
func WithScorer(s *score.Scorer) Option { return func(r *Runner) { r.scorer = s } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// New creates a Runner and registers its handlers on queue.
func New(cfg *config.Config, repo *storage.Repository, fetcher *fetch.Fetcher, queue *taskqueue.Queue, logger *utils.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		loc:       cfg.Location(),
		repo:      repo,
		fetcher:   fetcher,
		store:     fetcher.Store(),
		queue:     queue,
		extractor: extract.New(logger),
		cleaner:   services.NewCleaner(logger),
		logger:    logger.With("tasks"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scorer == nil {
		r.scorer = score.Default(score.OptionsFromConfig(cfg))
	}
	if r.sender == nil {
		r.sender = notify.NewLogSender(logger)
	}
	if r.source == nil {
		r.source = scraper.NewSearchSource(fetcher, logger)
	}
	r.register()
	return r
}

// Queue is the queue the runner dispatches on.
func (r *Runner) Queue() *taskqueue.Queue { return r.queue }

func (r *Runner) register() {
	policy := utils.RetryConfig{
		MaxRetries: r.cfg.MaxRetries,
		Retryable:  fetch.IsTimeout,
		Logger:     r.logger,
	}

	r.queue.Register(TaskIngest, func(ctx context.Context, _ any, payload any) (any, error) {
		p, ok := payload.(IngestPayload)
		if !ok {
			return nil, payloadError(TaskIngest, payload)
		}
		id, err := r.Ingest(ctx, p.Result, p.Force)
		return id, err
	}, policy)

	r.queue.Register(TaskDownloadListing, func(ctx context.Context, parent any, payload any) (any, error) {
		id, p, err := listingArg(TaskDownloadListing, parent, payload)
		if err != nil {
			return nil, err
		}
		return id, r.DownloadListing(ctx, id, p.Force)
	}, policy)

	r.queue.Register(TaskLocationEnrich, func(ctx context.Context, parent any, payload any) (any, error) {
		id, _, err := listingArg(TaskLocationEnrich, parent, payload)
		if err != nil {
			return nil, err
		}
		kept, err := r.LocationEnrich(ctx, id)
		if err != nil {
			return nil, err
		}
		if !kept {
			return nil, taskqueue.ErrHalt
		}
		return id, nil
	}, policy)

	r.queue.Register(TaskScoreListing, func(ctx context.Context, parent any, payload any) (any, error) {
		id, _, err := listingArg(TaskScoreListing, parent, payload)
		if err != nil {
			return nil, err
		}
		if _, err := r.ScoreListing(ctx, id); err != nil {
			return nil, err
		}
		return id, nil
	}, policy)

	r.queue.Register(TaskDownloadImages, func(ctx context.Context, parent any, payload any) (any, error) {
		id, p, err := listingArg(TaskDownloadImages, parent, payload)
		if err != nil {
			return nil, err
		}
		token, err := r.DownloadImagesForListing(ctx, id, p.Force)
		return token, err
	}, policy)

	r.queue.Register(TaskDownloadImage, func(ctx context.Context, _ any, payload any) (any, error) {
		p, ok := payload.(ImagePayload)
		if !ok {
			return nil, payloadError(TaskDownloadImage, payload)
		}
		return p.ID, r.DownloadImage(ctx, p.ID, p.Force)
	}, policy)

	r.queue.Register(TaskCheckExpiration, func(ctx context.Context, parent any, payload any) (any, error) {
		id, _, err := listingArg(TaskCheckExpiration, parent, payload)
		if err != nil {
			return nil, err
		}
		status, err := r.CheckExpiration(ctx, id)
		return status, err
	}, policy)

	r.queue.Register(TaskExportListing, func(ctx context.Context, parent any, payload any) (any, error) {
		id, p, err := listingArg(TaskExportListing, parent, payload)
		if err != nil {
			return nil, err
		}
		written, err := r.ExportListing(ctx, id, p.Force)
		return written, err
	}, policy)

	r.queue.Register(TaskScrape, func(ctx context.Context, _ any, payload any) (any, error) {
		p, ok := payload.(ScrapePayload)
		if !ok {
			return nil, payloadError(TaskScrape, payload)
		}
		token, err := r.Scrape(ctx, p.RecordID, p.Filters, p.Limit, p.Force)
		return token, err
	}, policy)
}

// listingArg resolves the listing id from the payload, falling back to the
// id produced by the previous chain stage.
func listingArg(task string, parent, payload any) (uint, ListingPayload, error) {
	p, ok := payload.(ListingPayload)
	if !ok {
		return 0, p, payloadError(task, payload)
	}
	if p.ID != 0 {
		return p.ID, p, nil
	}
	if id, ok := parent.(uint); ok && id != 0 {
		return id, p, nil
	}
	return 0, p, fmt.Errorf("%s: no listing id in payload or parent (%T)", task, parent)
}

func payloadError(task string, payload any) error {
	return fmt.Errorf("%s: unexpected payload %T", task, payload)
}

// skew draws a start delay uniformly from [0, TaskSkew].
func (r *Runner) skew() time.Duration {
	if r.cfg.TaskSkew <= 0 {
		return 0
	}
	return rand.N(r.cfg.TaskSkew + 1)
}

// dispatchEach dispatches build(id) for every id as one group. No ids means
// no group and an empty token.
func (r *Runner) dispatchEach(ids []uint, build func(id uint) taskqueue.Work) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	group := make(taskqueue.Group, 0, len(ids))
	for _, id := range ids {
		group = append(group, build(id))
	}
	gr, err := r.queue.DelayGroup(group, nil)
	if err != nil {
		return "", err
	}
	return gr.ID, nil
}
