// Package cmd is the rental-pipeline command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rental-pipeline/config"
	"rental-pipeline/utils"
)

// RootCommand builds the command tree over cfg.
func RootCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rental-pipeline",
		Short:         "Scrape, enrich and score rental listings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setupFlags(rootCmd, cfg)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger.SetLevel(utils.ParseLevel(cfg.LogLevel))
		if cfg.Workers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", cfg.Workers)
		}
		return nil
	}

	rootCmd.AddCommand(
		scrapeCommand(cfg, logger),
		ingestCommand(cfg, logger),
		downloadCommand(cfg, logger),
		locateCommand(cfg, logger),
		scoreCommand(cfg, logger),
		checkExpirationsCommand(cfg, logger),
		exportCommand(cfg, logger),
		notifyCommand(cfg, logger),
		importTransitCommand(cfg, logger),
		importBoxesCommand(cfg, logger),
		taxonomyCommand(cfg, logger),
		searchCommand(cfg, logger),
		reportCommand(cfg, logger),
		serveCommand(cfg, logger),
	)
	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, cfg *config.Config) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Task attempts running at once")
	flags.BoolVar(&cfg.CacheEnable, "cache", cfg.CacheEnable, "Read and write fetched pages through the disk cache")
	flags.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "Cache root directory")
	flags.DurationVar(&cfg.TaskSkew, "skew", cfg.TaskSkew, "Upper bound of the random start delay of fanned-out tasks")
}

// Execute runs the command tree until it finishes or the process is interrupted.
func Execute(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCommand(cfg, logger).ExecuteContext(ctx)
}
