package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// TopScoredCount is how many listings the report ranks.
const TopScoredCount = 5

// ReportService summarises the stored listings.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger.With("report")}
}

// Generate computes price statistics over unexpired listings, the best
// scored listings and per-area counts.
func (s *ReportService) Generate(listings []*models.Listing) *models.ListingReport {
	report := &models.ListingReport{
		ListingsByArea: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priceListings []*models.Listing
	var scoredListings []*models.Listing

	for _, l := range listings {
		if l.Expired != nil {
			report.ExpiredListings++
		}
		if l.Notified {
			report.NotifiedListings++
		}
		if l.Area != nil {
			report.ListingsByArea[l.Area.Name]++
		}
		if l.Expired != nil {
			continue
		}
		if l.Price != nil && *l.Price > 0 {
			priceListings = append(priceListings, l)
		}
		if l.Score != nil {
			scoredListings = append(scoredListings, l)
		}
	}

	if len(priceListings) > 0 {
		report.MinPrice = *priceListings[0].Price
		report.MaxPrice = *priceListings[0].Price
		report.MostExpensive = priceListings[0]
		var total float64
		for _, l := range priceListings {
			p := *l.Price
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priceListings)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	sort.SliceStable(scoredListings, func(i, j int) bool {
		return scoredListings[i].Score.Total > scoredListings[j].Score.Total
	})
	if len(scoredListings) > TopScoredCount {
		report.TopScored = scoredListings[:TopScoredCount]
	} else {
		report.TopScored = scoredListings
	}

	s.logger.Debug("Report over %d listings (%d expired)", report.TotalListings, report.ExpiredListings)
	return report
}

func (s *ReportService) Print(w io.Writer, r *models.ListingReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  RENTAL LISTINGS REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings    : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Expired listings  : \033[1m%d\033[0m\n", r.ExpiredListings)
	fmt.Fprintf(w, "  Notified listings : \033[1m%d\033[0m\n", r.NotifiedListings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per month, active listings)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Name, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m$%.2f\033[0m\n", *r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top %d Scored Listings\033[0m\n", TopScoredCount)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopScored) == 0 {
		fmt.Fprintf(w, "  No scored listings found\n")
	} else {
		for i, l := range r.TopScored {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%8.0f\033[0m\n",
				i+1, truncate(l.Name, 38), l.Score.Total)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Area\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByArea) == 0 {
		fmt.Fprintf(w, "  No area data\n")
	} else {
		type areaCount struct {
			area  string
			count int
		}
		var areas []areaCount
		for area, cnt := range r.ListingsByArea {
			areas = append(areas, areaCount{area, cnt})
		}
		sort.Slice(areas, func(i, j int) bool {
			if areas[i].count != areas[j].count {
				return areas[i].count > areas[j].count
			}
			return areas[i].area < areas[j].area
		})
		for _, ac := range areas {
			bar := strings.Repeat("█", min(ac.count, 40))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(ac.area, 28), bar, ac.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
