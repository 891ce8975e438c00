package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/cache"
	"rental-pipeline/config"
	"rental-pipeline/models"
)

func TestCheckExpirationRecordsStatus(t *testing.T) {
	h := newHarness(t)
	live := h.ingest(t, rawResult(6001))
	gone := h.ingest(t, rawResult(6002))
	h.transport.RegisterResponder(http.MethodGet, live.URL, httpmock.NewStringResponder(200, "ok"))
	h.transport.RegisterResponder(http.MethodGet, gone.URL, httpmock.NewStringResponder(404, "gone"))

	status, err := h.runner.CheckExpiration(h.ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	status, err = h.runner.CheckExpiration(h.ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	got, err := h.repo.GetListing(h.ctx, live.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Expired)
	got, err = h.repo.GetListing(h.ctx, gone.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Expired)
	assert.True(t, got.Expired.Equal(fixedNow))
}

func TestCheckExpirationsHonoursCooldown(t *testing.T) {
	h := newHarness(t)
	checked := h.ingest(t, rawResult(6001))
	fresh := h.ingest(t, rawResult(6002))
	h.transport.RegisterResponder(http.MethodGet, checked.URL, httpmock.NewStringResponder(200, "ok"))
	h.transport.RegisterResponder(http.MethodGet, fresh.URL, httpmock.NewStringResponder(200, "ok"))

	_, err := h.runner.CheckExpiration(h.ctx, checked.ID)
	require.NoError(t, err)

	token, err := h.runner.CheckExpirations(h.ctx, 10, false, false)
	require.NoError(t, err)
	gr, ok := h.queue.GroupResult(token)
	require.True(t, ok)
	assert.Len(t, gr.Members, 1)
	h.drain(t)
	assert.Equal(t, 1, h.calls(http.MethodGet, fresh.URL))
	assert.Equal(t, 1, h.calls(http.MethodGet, checked.URL))

	token, err = h.runner.CheckExpirations(h.ctx, 10, true, false)
	require.NoError(t, err)
	gr, ok = h.queue.GroupResult(token)
	require.True(t, ok)
	assert.Len(t, gr.Members, 2)
	h.drain(t)
}

func TestCheckExpirationsAfterCooldown(t *testing.T) {
	h := newHarness(t)
	l := h.ingest(t, rawResult(6001))
	h.transport.RegisterResponder(http.MethodGet, l.URL, httpmock.NewStringResponder(200, "ok"))
	_, err := h.runner.CheckExpiration(h.ctx, l.ID)
	require.NoError(t, err)

	h.runner.now = func() time.Time { return fixedNow.Add(config.ExpirationCooldown + time.Hour) }
	token, err := h.runner.CheckExpirations(h.ctx, 10, false, false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	h.drain(t)
}

func TestCheckExpirationsNothingDue(t *testing.T) {
	h := newHarness(t)
	token, err := h.runner.CheckExpirations(h.ctx, 10, false, false)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestExportRoundTrip(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.CacheEnable = false })
	raw := rawResult(6123)
	raw.Geotag = &[2]float64{37.6936, -121.9228}
	l := h.ingest(t, raw)

	wrote, err := h.runner.ExportListing(h.ctx, l.ID, false)
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := h.store.Read(cache.Path(cache.KindListings, "6123", cache.ExtJSON))
	require.NoError(t, err)
	var exported models.RawResult
	require.NoError(t, json.Unmarshal(data, &exported))

	assert.Equal(t, raw.ID, exported.ID)
	assert.Equal(t, raw.Datetime, exported.Datetime)
	assert.Equal(t, raw.Where, exported.Where)
	assert.Equal(t, raw.URL, exported.URL)
	assert.Equal(t, raw.Name, exported.Name)
	assert.Equal(t, raw.Geotag, exported.Geotag)
	assert.Equal(t, raw.Site, exported.Site)
	assert.Equal(t, raw.Area, exported.Area)
	assert.Equal(t, raw.Category, exported.Category)
	want, err := models.ParsePrice(raw.Price)
	require.NoError(t, err)
	got, err := models.ParsePrice(exported.Price)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExportKeepsExistingSnapshotUnlessForced(t *testing.T) {
	h := newHarness(t)
	l := h.ingest(t, rawResult(6123))

	wrote, err := h.runner.ExportListing(h.ctx, l.ID, false)
	require.NoError(t, err)
	assert.False(t, wrote, "ingest already cached the result")

	wrote, err = h.runner.ExportListing(h.ctx, l.ID, true)
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestExportListingsFansOut(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.CacheEnable = false })
	h.ingest(t, rawResult(6001))
	h.ingest(t, rawResult(6002))

	token, err := h.runner.ExportListings(h.ctx, false)
	require.NoError(t, err)
	h.drain(t)

	gr, ok := h.queue.GroupResult(token)
	require.True(t, ok)
	completed, failed := gr.Counts()
	assert.Equal(t, 2, completed)
	assert.Zero(t, failed)
	paths, err := h.store.List(cache.KindListings, cache.ExtJSON)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func withStop(t *testing.T, h *harness, l *models.Listing) {
	t.Helper()
	_, err := h.repo.UpsertTransitStops(h.ctx, []models.TransitStop{dublinStop()})
	require.NoError(t, err)
	stops, err := h.repo.TransitStops(h.ctx)
	require.NoError(t, err)
	require.NoError(t, h.repo.SetTransitStop(h.ctx, l.ID, stops[0].ID))
}

func TestNotifySendsAndMarks(t *testing.T) {
	h := newHarness(t)
	near := h.ingest(t, rawResult(6001))
	withStop(t, h, near)
	h.ingest(t, rawResult(6002))

	n, err := h.runner.Notify(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, near.ID, h.sender.sent[0][0].ID)

	n, err = h.runner.Notify(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.sender.sent, 1)
}

func TestNotifyFailureLeavesListingsUnsent(t *testing.T) {
	h := newHarness(t)
	l := h.ingest(t, rawResult(6001))
	withStop(t, h, l)
	h.sender.fails = errors.New("smtp down")

	_, err := h.runner.Notify(h.ctx)
	require.ErrorContains(t, err, "smtp down")

	got, err := h.repo.GetListing(h.ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.Notified)
}

func TestNotifySkipsRejected(t *testing.T) {
	h := newHarness(t)
	l := h.ingest(t, rawResult(6001))
	withStop(t, h, l)
	require.NoError(t, h.repo.SetUserInfo(h.ctx, &models.UserListingInfo{ListingID: l.ID, Rejected: true}))

	n, err := h.runner.Notify(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.sender.sent)
}
