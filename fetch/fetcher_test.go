package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/cache"
	"rental-pipeline/utils"
)

const listingURL = "http://sfbay.craigslist.org/eby/apa/6095797875.html"

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func newTestFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport, *cache.Store) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	store := cache.New(afero.NewMemMapFs(), "/cache")
	f := New(store, utils.NopLogger(), WithClient(&http.Client{Transport: transport}))
	return f, transport, store
}

func TestFetchWritesThroughCache(t *testing.T) {
	f, transport, store := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewStringResponder(200, "<html>listing</html>"))
	path := cache.Path(cache.KindListings, "6095797875", cache.ExtHTML)

	resp, err := f.Fetch(context.Background(), listingURL, path, true, "listing")
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "<html>listing</html>", string(resp.Body))
	assert.True(t, store.Exists(path))

	resp, err = f.Fetch(context.Background(), listingURL, path, true, "listing")
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "<html>listing</html>", string(resp.Body))
	assert.Equal(t, 1, transport.GetTotalCallCount(), "second fetch must be served from cache")
}

func TestFetchWithoutCacheAlwaysHitsNetwork(t *testing.T) {
	f, transport, store := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewStringResponder(200, "page"))
	path := cache.Path(cache.KindListings, "6095797875", cache.ExtHTML)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), listingURL, path, false, "listing")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.False(t, store.Exists(path))
}

func TestFetchHTTPErrorCarriesStatus(t *testing.T) {
	f, transport, store := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewStringResponder(404, "gone"))
	path := cache.Path(cache.KindListings, "6095797875", cache.ExtHTML)

	_, err := f.Fetch(context.Background(), listingURL, path, true, "listing")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.StatusCode)
	assert.False(t, IsTimeout(err))
	assert.False(t, store.Exists(path), "error bodies are never cached")

	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, 404, code)
}

func TestFetchTimeoutIsClassified(t *testing.T) {
	f, transport, _ := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewErrorResponder(netTimeout{}))

	_, err := f.Fetch(context.Background(), listingURL, "", false, "listing")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFetchOtherTransportErrorsAreNotTimeouts(t *testing.T) {
	f, transport, _ := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := f.Fetch(context.Background(), listingURL, "", false, "listing")
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestStatusDoesNotFailOnNotFound(t *testing.T) {
	f, transport, _ := newTestFetcher(t)
	transport.RegisterResponder(http.MethodGet, listingURL, httpmock.NewStringResponder(404, "gone"))

	code, err := f.Status(context.Background(), listingURL)
	require.NoError(t, err)
	assert.Equal(t, 404, code)
}
