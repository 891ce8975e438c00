package scraper

import (
	"context"

	"rental-pipeline/fetch"
	"rental-pipeline/utils"
)

// SearchSource reads search result pages over HTTP.
type SearchSource struct {
	fetcher *fetch.Fetcher
	logger  *utils.Logger
}

// NewSearchSource creates a source using fetcher for page downloads.
func NewSearchSource(fetcher *fetch.Fetcher, logger *utils.Logger) *SearchSource {
	return &SearchSource{fetcher: fetcher, logger: logger.With("search")}
}

// Results pages through the newest-first search results of q.
func (s *SearchSource) Results(_ context.Context, q Query) (ResultIterator, error) {
	return &pageIterator{load: func(ctx context.Context, offset int) ([]rowResult, error) {
		pageURL := q.SearchURL(offset)
		resp, err := s.fetcher.Fetch(ctx, pageURL, "", false, "search page")
		if err != nil {
			return nil, err
		}
		rows, err := parseSearchPage(resp.Body, pageURL, q)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Page at offset %d has %d results", offset, len(rows))
		return rows, nil
	}}, nil
}
