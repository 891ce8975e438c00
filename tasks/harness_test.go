package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/fetch"
	"rental-pipeline/models"
	"rental-pipeline/scraper"
	"rental-pipeline/storage"
	"rental-pipeline/taskqueue"
	"rental-pipeline/utils"
)

const imageURL = "https://images.craigslist.org/00E0E_fUsmqInrJwB_600x450.jpg"
const thumbnailURL = "https://images.craigslist.org/00E0E_fUsmqInrJwB_50x50c.jpg"

var fixedNow = time.Date(2017, 5, 2, 12, 0, 0, 0, time.UTC)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

type recordingSender struct {
	mu    sync.Mutex
	sent  [][]models.Listing
	fails error
}

func (s *recordingSender) Send(_ context.Context, listings []models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails != nil {
		return s.fails
	}
	s.sent = append(s.sent, listings)
	return nil
}

type sliceSource struct {
	results []models.RawResult
	queries []scraper.Query
}

func (s *sliceSource) Results(_ context.Context, q scraper.Query) (scraper.ResultIterator, error) {
	s.queries = append(s.queries, q)
	return &sliceIterator{results: append([]models.RawResult(nil), s.results...)}, nil
}

type sliceIterator struct {
	results []models.RawResult
	calls   int
}

func (it *sliceIterator) Next(context.Context) (models.RawResult, error) {
	it.calls++
	if len(it.results) == 0 {
		return models.RawResult{}, scraper.ErrExhausted
	}
	r := it.results[0]
	it.results = it.results[1:]
	return r, nil
}

type harness struct {
	ctx       context.Context
	cfg       *config.Config
	repo      *storage.Repository
	store     *cache.Store
	transport *httpmock.MockTransport
	queue     *taskqueue.Queue
	sender    *recordingSender
	source    *sliceSource
	runner    *Runner
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.FromViper(viper.New())
	cfg.TaskSkew = 0
	cfg.MaxRetries = 2
	cfg.CacheEnable = true
	cfg.Timezone = "UTC"
	for _, fn := range tweak {
		fn(cfg)
	}

	logger := utils.NopLogger()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	site, err := repo.EnsureSite(ctx, "sfbay")
	require.NoError(t, err)
	_, err = repo.EnsureArea(ctx, site, "eby")
	require.NoError(t, err)
	_, err = repo.EnsureCategory(ctx, "apa", "apartments")
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	store := cache.New(afero.NewMemMapFs(), "cl")
	fetcher := fetch.New(store, logger, fetch.WithClient(&http.Client{Transport: transport}), fetch.WithRateLimit(0))

	queue := taskqueue.New(4, taskqueue.WithBackoff(utils.NoBackoff))
	t.Cleanup(queue.Close)

	h := &harness{
		ctx:       ctx,
		cfg:       cfg,
		repo:      repo,
		store:     store,
		transport: transport,
		queue:     queue,
		sender:    &recordingSender{},
		source:    &sliceSource{},
	}
	h.runner = New(cfg, repo, fetcher, queue, logger,
		WithSender(h.sender), WithSource(h.source), WithClock(func() time.Time { return fixedNow }))
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Drain(ctx))
}

func (h *harness) calls(method, url string) int {
	return h.transport.GetCallCountInfo()[method+" "+url]
}

// serveListing answers the detail page and both image renditions.
func (h *harness) serveListing(t *testing.T, url string) {
	t.Helper()
	page, err := os.ReadFile("testdata/listing.html")
	require.NoError(t, err)
	h.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(200, page))
	h.transport.RegisterResponder(http.MethodGet, imageURL, httpmock.NewBytesResponder(200, []byte("full")))
	h.transport.RegisterResponder(http.MethodGet, thumbnailURL, httpmock.NewBytesResponder(200, []byte("thumb")))
}

func (h *harness) ingest(t *testing.T, raw models.RawResult) *models.Listing {
	t.Helper()
	id, err := h.runner.Ingest(h.ctx, raw, false)
	require.NoError(t, err)
	l, err := h.repo.GetListing(h.ctx, id)
	require.NoError(t, err)
	return l
}

func listingURL(id int64) string {
	return fmt.Sprintf("https://sfbay.craigslist.org/eby/apa/%d.html", id)
}

func rawResult(id int64) models.RawResult {
	return models.RawResult{
		ID:       strconv.FormatInt(id, 10),
		Datetime: "2017-05-01 09:30",
		Where:    "dublin",
		URL:      listingURL(id),
		Name:     "Avalon flat",
		Price:    "$2,450",
		Site:     "sfbay",
		Area:     "eby",
		Category: "apa",
	}
}
