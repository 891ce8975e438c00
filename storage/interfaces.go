package storage

import "rental-pipeline/models"

// ListingWriter is satisfied by any sink that exports listing summaries.
type ListingWriter interface {
	Write(listings []*models.Listing) error
	Close() error
}

var _ ListingWriter = (*CSVWriter)(nil)
