package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/config"
	"rental-pipeline/models"
)

func TestExpirationCandidatesOrderAndCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2017, 6, 10, 12, 0, 0, 0, time.UTC)

	never := f.listing(t, 1)
	old := f.listing(t, 2)
	older := f.listing(t, 3)
	recent := f.listing(t, 4)
	gone := f.listing(t, 5)

	check := func(l *models.Listing, status int, at time.Time) {
		require.NoError(t, f.repo.RecordCheck(ctx, l, l.RecordCheck(status, at)))
	}
	check(old, 200, now.Add(-72*time.Hour))
	check(older, 200, now.Add(-96*time.Hour))
	check(recent, 200, now.Add(-time.Hour))
	check(gone, 404, now.Add(-100*time.Hour))

	q := ExpirationQuery{Cooldown: config.ExpirationCooldown, Now: now}
	ids, err := f.repo.ExpirationCandidates(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []uint{never.ID, older.ID, old.ID}, ids)

	q.Limit = 2
	ids, err = f.repo.ExpirationCandidates(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []uint{never.ID, older.ID}, ids)

	q = ExpirationQuery{Force: true, IncludeExpired: true, Cooldown: config.ExpirationCooldown, Now: now}
	ids, err = f.repo.ExpirationCandidates(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{never.ID, old.ID, older.ID, recent.ID, gone.ID}, ids)
}

func TestRecordCheckMarksExpiredOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, 1)
	first := time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.repo.RecordCheck(ctx, l, l.RecordCheck(404, first)))
	require.NoError(t, f.repo.RecordCheck(ctx, l, l.RecordCheck(404, first.Add(time.Hour))))

	got, err := f.repo.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Expired)
	assert.True(t, got.Expired.Equal(first))

	checks, err := f.repo.LatestChecks(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, checks, 2)
}

func TestNotifyCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stops := []models.TransitStop{{Agency: "bart", StopID: "DBRK", Name: "Downtown Berkeley", Lat: 37.87, Lon: -122.268}}
	_, err := f.repo.UpsertTransitStops(ctx, stops)
	require.NoError(t, err)
	all, err := f.repo.TransitStops(ctx)
	require.NoError(t, err)
	stop := all[0].ID

	best, low, noStop, rejected, notified, expired := f.listing(t, 1), f.listing(t, 2), f.listing(t, 3), f.listing(t, 4), f.listing(t, 5), f.listing(t, 6)
	unscored := f.listing(t, 7)
	for _, l := range []*models.Listing{unscored, best, low, rejected, notified, expired} {
		require.NoError(t, f.repo.SetTransitStop(ctx, l.ID, stop))
	}
	require.NoError(t, f.repo.SaveScore(ctx, best.ID, 900, nil, time.Now()))
	require.NoError(t, f.repo.SaveScore(ctx, low.ID, -100, nil, time.Now()))
	require.NoError(t, f.repo.SetUserInfo(ctx, &models.UserListingInfo{ListingID: rejected.ID, Rejected: true}))
	require.NoError(t, f.repo.MarkNotified(ctx, []uint{notified.ID}))
	require.NoError(t, f.repo.RecordCheck(ctx, expired, expired.RecordCheck(404, time.Now())))

	got, err := f.repo.NotifyCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, best.ID, got[0].ID)
	assert.Equal(t, low.ID, got[1].ID, "a negative score still ranks above an unscored listing")
	assert.Equal(t, unscored.ID, got[2].ID)
	for _, l := range got {
		assert.NotEqual(t, noStop.ID, l.ID)
	}
	require.NotNil(t, got[0].TransitStop)
	assert.Equal(t, "Downtown Berkeley", got[0].TransitStop.Name)

	got, err = f.repo.NotifyCandidates(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
