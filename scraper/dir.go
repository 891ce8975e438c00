package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"rental-pipeline/cache"
	"rental-pipeline/models"
)

// DirSource replays raw results previously written to the cache.
type DirSource struct {
	store *cache.Store
}

// NewDirSource creates a source over the listings kind of store.
func NewDirSource(store *cache.Store) *DirSource {
	return &DirSource{store: store}
}

// Results yields every cached result. Results carrying their own taxonomy
// keep it; the query fills in what is missing.
func (d *DirSource) Results(_ context.Context, q Query) (ResultIterator, error) {
	paths, err := d.store.List(cache.KindListings, cache.ExtJSON)
	if err != nil {
		return nil, err
	}
	return &dirIterator{store: d.store, paths: paths, q: q}, nil
}

type dirIterator struct {
	store *cache.Store
	paths []string
	q     Query
}

func (it *dirIterator) Next(_ context.Context) (models.RawResult, error) {
	if len(it.paths) == 0 {
		return models.RawResult{}, ErrExhausted
	}
	p := it.paths[0]
	it.paths = it.paths[1:]

	data, err := it.store.Read(p)
	if err != nil {
		return models.RawResult{}, err
	}
	var res models.RawResult
	if err := json.Unmarshal(data, &res); err != nil {
		return models.RawResult{}, fmt.Errorf("decode %s: %w", p, err)
	}
	if res.Site == "" {
		res.Site = it.q.Site
	}
	if res.Area == "" {
		res.Area = it.q.Area
	}
	if res.Category == "" {
		res.Category = it.q.Category
	}
	return res, nil
}
