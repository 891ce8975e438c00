package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/fetch"
	"rental-pipeline/metrics"
	"rental-pipeline/notify"
	"rental-pipeline/scraper"
	"rental-pipeline/storage"
	"rental-pipeline/taskqueue"
	"rental-pipeline/tasks"
	"rental-pipeline/utils"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	repo    *storage.Repository
	store   *cache.Store
	fetcher *fetch.Fetcher
	metrics *metrics.PipelineMetrics
	queue   *taskqueue.Queue
	runner  *tasks.Runner
}

func newApp(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	repo, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	store := cache.NewOS(cfg.CachePath)
	fetcher := fetch.New(store, logger,
		fetch.WithTimeout(cfg.RequestTimeout),
		fetch.WithRateLimit(cfg.RequestsPerSecond),
		fetch.WithMetrics(m),
	)
	queue := taskqueue.New(cfg.Workers,
		taskqueue.WithLogger(logger),
		taskqueue.WithMetrics(m),
		taskqueue.WithStartSpacing(cfg.RateLimitMs),
	)
	logger.Debug("Task queue running %d workers", queue.Workers())

	sender, err := newSender(cfg, logger)
	if err != nil {
		queue.Close()
		_ = repo.Close()
		return nil, err
	}

	runner := tasks.New(cfg, repo, fetcher, queue, logger,
		tasks.WithSender(sender),
		tasks.WithSource(newSource(cfg, fetcher, logger)),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		store:   store,
		fetcher: fetcher,
		metrics: m,
		queue:   queue,
		runner:  runner,
	}, nil
}

func newSender(cfg *config.Config, logger *utils.Logger) (notify.Sender, error) {
	if !cfg.SendMail || len(cfg.NotifyURLs) == 0 {
		return notify.NewLogSender(logger), nil
	}
	sender, err := notify.NewShoutrrrSender(cfg.NotifyURLs, cfg.RequestTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("notification urls: %w", err)
	}
	return sender, nil
}

func newSource(cfg *config.Config, fetcher *fetch.Fetcher, logger *utils.Logger) scraper.Source {
	if cfg.Source == "browser" {
		return scraper.NewBrowserSource(cfg.ChromeBin, cfg.MaxRetries, logger)
	}
	return scraper.NewSearchSource(fetcher, logger)
}

func (a *app) close() {
	a.queue.Close()
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Closing storage: %v", err)
	}
}

// await drains the queue and reports how the group behind token fared.
// Failed members are logged, not returned: each covers a single listing.
func (a *app) await(ctx context.Context, token string) error {
	if token == "" {
		a.logger.Info("Nothing to do")
		return nil
	}
	a.logger.Info("Dispatched %s, waiting for it and everything it fans out", token)
	if err := a.queue.Drain(ctx); err != nil {
		return err
	}
	gr, ok := a.queue.GroupResult(token)
	if !ok {
		return nil
	}
	completed, failed := gr.Counts()
	a.logger.Info("%d completed, %d failed", completed, failed)
	if failed > 0 {
		a.logger.Warn("Failures: %v", gr.Err())
	}
	return nil
}

// withApp wraps a command body with app setup and teardown.
func withApp(cfg *config.Config, logger *utils.Logger, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, args)
	}
}
