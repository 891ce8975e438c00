package cmd

import (
	"context"
	"math"

	"github.com/spf13/cobra"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/scraper"
	"rental-pipeline/services"
	"rental-pipeline/storage"
	"rental-pipeline/utils"
)

func scrapeCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var (
		site, area, category string
		filters              map[string]string
		limit                int
		force                bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape one area and category and run every result through the pipeline",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			rec, err := a.repo.NewScrapeRecord(ctx, storage.ScrapeTarget{
				SiteName:     site,
				AreaName:     area,
				CategoryName: category,
			})
			if err != nil {
				return err
			}
			if len(filters) == 0 {
				filters = nil
			}
			token, err := a.runner.Scrape(ctx, rec.ID, filters, limit, force)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}

	cmd.Flags().StringVar(&site, "site", cfg.Site, "Site to scrape")
	cmd.Flags().StringVar(&area, "area", cfg.Area, "Area to scrape")
	cmd.Flags().StringVar(&category, "category", cfg.Category, "Category to scrape")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Search filter key=value (default from FILTERS)")
	cmd.Flags().IntVar(&limit, "limit", cfg.MaxScrape, "Maximum results to take")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest and re-download known listings")
	return cmd
}

func ingestCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var (
		limit int
		force bool
	)

	cmd := &cobra.Command{
		Use:   "ingest DIR",
		Short: "Run cached JSON results under DIR/listings through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
			source := scraper.NewDirSource(cache.NewOS(args[0]))
			it, err := source.Results(ctx, scraper.Query{Site: cfg.Site, Area: cfg.Area, Category: cfg.Category})
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = math.MaxInt
			}
			raw := services.NewCleaner(logger).Clean(scraper.SafeIterate(ctx, it, limit, logger))
			gr, err := a.runner.DispatchPipelines(raw, force, nil)
			if err != nil {
				return err
			}
			return a.await(ctx, gr.ID)
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results to take (0 for all)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest and re-download known listings")
	return cmd
}

func downloadCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download detail pages and images of listings that lack them",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			token, err := a.runner.EnsureDownloaded(ctx, force)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "Download every listing again")
	return cmd
}

func locateCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Geofence every listing and link its nearest transit stop",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			token, err := a.runner.LocateAll(ctx)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}
}

func scoreCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score every listing",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			token, err := a.runner.ScoreAll(ctx)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}
}
