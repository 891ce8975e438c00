package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rental-pipeline/config"
	"rental-pipeline/location"
	"rental-pipeline/models"
	"rental-pipeline/services"
	"rental-pipeline/utils"
)

func importTransitCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var agency string
	cmd := &cobra.Command{
		Use:   "import-transit STOPS.TXT",
		Short: "Load transit stops from a GTFS stops.txt",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stops, err := location.ReadStops(f, agency)
			if err != nil {
				return err
			}
			n, err := a.repo.UpsertTransitStops(ctx, stops)
			if err != nil {
				return err
			}
			logger.Info("Imported %d %s stops", n, agency)
			return nil
		}),
	}
	cmd.Flags().StringVar(&agency, "agency", "bart", "Agency the stops belong to")
	return cmd
}

func importBoxesCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import-boxes BOXES.CSV",
		Short: "Load geofence bounding boxes from a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			boxes, err := location.ReadBoxes(f)
			if err != nil {
				return err
			}
			n, err := a.repo.UpsertBoundingBoxes(ctx, boxes)
			if err != nil {
				return err
			}
			logger.Info("Imported %d bounding boxes", n)
			return nil
		}),
	}
}

func taxonomyCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage sites, areas and categories",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add-site NAME",
			Short: "Add a site",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
				_, err := a.repo.EnsureSite(ctx, args[0])
				return err
			}),
		},
		&cobra.Command{
			Use:   "add-area SITE NAME",
			Short: "Add an area to a site",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
				site, err := a.repo.SiteByName(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = a.repo.EnsureArea(ctx, site, args[1])
				return err
			}),
		},
		&cobra.Command{
			Use:   "add-category NAME [DESCRIPTION]",
			Short: "Add a category",
			Args:  cobra.RangeArgs(1, 2),
			RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
				desc := ""
				if len(args) == 2 {
					desc = args[1]
				}
				_, err := a.repo.EnsureCategory(ctx, args[0], desc)
				return err
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List sites and their areas",
			RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
				sites, err := a.repo.Sites(ctx)
				if err != nil {
					return err
				}
				for _, s := range sites {
					fmt.Printf("%s (%s)\n", s.Name, s.URL())
					for _, area := range s.Areas {
						fmt.Printf("  %s\n", area.Name)
					}
				}
				return nil
			}),
		},
	)
	return cmd
}

func searchCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Manage saved housing searches",
	}

	var (
		s                    models.HousingSearch
		site, area, category string
		priceMin, priceMax   float64
		target, expires      string
		disabled             bool
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a housing search",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, args []string) error {
			s.Name = args[0]
			s.Enabled = !disabled
			if priceMin > 0 {
				s.PriceMin = &priceMin
			}
			if priceMax > 0 {
				s.PriceMax = &priceMax
			}
			var err error
			if s.TargetDate, err = optionalDate(target); err != nil {
				return err
			}
			if s.ExpirationDate, err = optionalDate(expires); err != nil {
				return err
			}

			st, err := a.repo.SiteByName(ctx, site)
			if err != nil {
				return err
			}
			s.SiteID = &st.ID
			if area != "" {
				ar, err := a.repo.AreaByName(ctx, st, area)
				if err != nil {
					return err
				}
				s.AreaID = &ar.ID
			}
			if category != "" {
				c, err := a.repo.CategoryByName(ctx, category)
				if err != nil {
					return err
				}
				s.CategoryID = &c.ID
			}

			if err := a.repo.SaveSearch(ctx, &s); err != nil {
				return err
			}
			logger.Info("Saved search %d (%s)", s.ID, s.Status(time.Now()))
			return nil
		}),
	}
	add.Flags().StringVar(&s.Description, "description", "", "Free-form description")
	add.Flags().StringVar(&site, "site", cfg.Site, "Site")
	add.Flags().StringVar(&area, "area", "", "Area (the search stays pending without one)")
	add.Flags().StringVar(&category, "category", "", "Category (the search stays pending without one)")
	add.Flags().Float64Var(&priceMin, "price-min", 0, "Minimum monthly price")
	add.Flags().Float64Var(&priceMax, "price-max", 0, "Maximum monthly price")
	add.Flags().StringVar(&target, "target", "", "Target move-in date, YYYY-MM-DD")
	add.Flags().StringVar(&expires, "expires", "", "Stop scraping after this date, YYYY-MM-DD")
	add.Flags().BoolVar(&s.RequireImages, "require-images", false, "Only match listings with images")
	add.Flags().BoolVar(&disabled, "disabled", false, "Save the search disabled")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved searches with their status and matches",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			searches, err := a.repo.Searches(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMATCHES")
			for i := range searches {
				matches, err := a.repo.MatchingListings(ctx, &searches[i])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", searches[i].ID, searches[i].Name, searches[i].Status(now), len(matches))
			}
			return w.Flush()
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func reportCommand(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print price statistics, the best scored listings and per-area counts",
		RunE: withApp(cfg, logger, func(ctx context.Context, a *app, _ []string) error {
			listings, err := a.repo.ListingsForReport(ctx)
			if err != nil {
				return err
			}
			svc := services.NewReportService(logger)
			svc.Print(os.Stdout, svc.Generate(listings))
			return nil
		}),
	}
}
