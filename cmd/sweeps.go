package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"rental-pipeline/config"
	"rental-pipeline/models"
	"rental-pipeline/storage"
	"rental-pipeline/utils"
)

func checkExpirationsCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var (
		limit                 int
		force, includeExpired bool
	)
	cmd := &cobra.Command{
		Use:   "check-expirations",
		Short: "Re-check whether listings are still online",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			token, err := a.runner.CheckExpirations(ctx, limit, force, includeExpired)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", cfg.MaxScrape, "Maximum listings to check")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the recheck cooldown")
	cmd.Flags().BoolVar(&includeExpired, "include-expired", false, "Also check listings already marked expired")
	return cmd
}

func exportCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var (
		force   bool
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write JSON snapshots of every listing to the cache, or a CSV summary",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			if csvPath != "" {
				return exportCSV(ctx, a, csvPath)
			}
			token, err := a.runner.ExportListings(ctx, force)
			if err != nil {
				return err
			}
			return a.await(ctx, token)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing snapshots")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write a CSV summary to this path instead")
	return cmd
}

func exportCSV(ctx context.Context, a *app, path string) error {
	listings, err := a.repo.ListingsForReport(ctx)
	if err != nil {
		return err
	}
	w, err := storage.NewCSVWriter(path, a.cfg.Location())
	if err != nil {
		return err
	}
	if err := writeAll(w, listings); err != nil {
		return err
	}
	a.logger.Info("Wrote %d listings to %s", len(listings), path)
	return nil
}

func writeAll(w storage.ListingWriter, listings []*models.Listing) error {
	if err := w.Write(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func notifyCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send the best unsent listings",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			_, err := a.runner.Notify(ctx)
			return err
		}),
	}
}
