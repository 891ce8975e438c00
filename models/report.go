package models

// ListingReport holds summary statistics over the stored listings.
type ListingReport struct {
	TotalListings    int
	ExpiredListings  int
	NotifiedListings int
	AveragePrice     float64
	MinPrice         float64
	MaxPrice         float64
	MostExpensive    *Listing
	TopScored        []*Listing
	ListingsByArea   map[string]int
}
