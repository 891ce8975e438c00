// Package scraper produces raw search results from the classifieds site and
// from previously cached result dumps.
package scraper

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strconv"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// ErrExhausted ends iteration.
var ErrExhausted = errors.New("scraper: results exhausted")

// Query selects which results a source returns.
type Query struct {
	Site     string
	Area     string
	Category string
	Filters  map[string]string
}

// SearchURL is the newest-first search page starting at offset.
func (q Query) SearchURL(offset int) string {
	v := url.Values{}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, q.Filters[k])
	}
	v.Set("sort", "date")
	if offset > 0 {
		v.Set("s", strconv.Itoa(offset))
	}

	site := &models.Site{Name: q.Site}
	path := "/search/"
	if q.Area != "" {
		path += q.Area + "/"
	}
	return site.URL() + path + q.Category + "?" + v.Encode()
}

// ResultIterator yields raw results one at a time. Next returns ErrExhausted
// once nothing is left; any other error concerns a single item.
type ResultIterator interface {
	Next(ctx context.Context) (models.RawResult, error)
}

// Source opens an iterator over the results of a query.
type Source interface {
	Results(ctx context.Context, q Query) (ResultIterator, error)
}

// SafeIterate collects at most limit results with at most limit calls to
// Next. Item errors are logged and skipped. Iterators that implement
// io.Closer are closed.
func SafeIterate(ctx context.Context, it ResultIterator, limit int, logger *utils.Logger) []models.RawResult {
	if c, ok := it.(io.Closer); ok {
		defer c.Close()
	}

	var out []models.RawResult
	for i := 0; i < limit; i++ {
		if ctx.Err() != nil {
			break
		}
		res, err := it.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			logger.Error("[scraper] Skipping result: %v", err)
			continue
		}
		out = append(out, res)
	}
	return out
}

// pageFunc loads the results page starting at offset.
type pageFunc func(ctx context.Context, offset int) ([]rowResult, error)

type rowResult struct {
	result models.RawResult
	err    error
}

// pageIterator walks result pages until one comes back empty.
type pageIterator struct {
	load   pageFunc
	offset int
	buf    []rowResult
	done   bool
	onDone func()
}

func (p *pageIterator) Next(ctx context.Context) (models.RawResult, error) {
	for len(p.buf) == 0 {
		if p.done {
			return models.RawResult{}, ErrExhausted
		}
		rows, err := p.load(ctx, p.offset)
		if err != nil {
			p.finish()
			return models.RawResult{}, err
		}
		if len(rows) == 0 {
			p.finish()
			return models.RawResult{}, ErrExhausted
		}
		p.offset += len(rows)
		p.buf = rows
	}
	row := p.buf[0]
	p.buf = p.buf[1:]
	return row.result, row.err
}

func (p *pageIterator) finish() {
	p.done = true
	if p.onDone != nil {
		p.onDone()
		p.onDone = nil
	}
}

func (p *pageIterator) Close() error {
	p.finish()
	return nil
}
