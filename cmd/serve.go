package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rental-pipeline/config"
	"rental-pipeline/tasks"
	"rental-pipeline/utils"
)

func serveCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled scrapes, expiration sweeps and notifications, exposing metrics",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			errc := make(chan error, 1)
			go func() {
				logger.Info("Serving metrics on %s", cfg.MetricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case err := <-errc:
					logger.Error("Metrics server failed: %v", err)
					cancel()
				case <-runCtx.Done():
				}
			}()

			err := tasks.NewScheduler(a.runner).Run(runCtx)

			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer done()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.Warn("Metrics server shutdown: %v", serr)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address of the metrics endpoint")
	return cmd
}
