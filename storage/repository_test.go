package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

type fixture struct {
	repo     *Repository
	site     *models.Site
	area     *models.Area
	category *models.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), utils.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	site, err := repo.EnsureSite(ctx, "sfbay")
	require.NoError(t, err)
	area, err := repo.EnsureArea(ctx, site, "eby")
	require.NoError(t, err)
	category, err := repo.EnsureCategory(ctx, "apa", "apartments")
	require.NoError(t, err)
	return &fixture{repo: repo, site: site, area: area, category: category}
}

func (f *fixture) listing(t *testing.T, externalID int64) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ExternalID: externalID,
		URL:        "https://sfbay.craigslist.org/eby/apa/" + time.Unix(externalID, 0).UTC().Format("150405") + ".html",
		Created:    time.Date(2017, 5, 1, 12, 0, 0, 0, time.UTC),
		Name:       "listing",
	}
	require.NoError(t, f.repo.AssignTaxonomy(context.Background(), l, models.TaxonomyRef{Site: "sfbay", Area: "eby", Category: "apa"}))
	require.NoError(t, f.repo.CreateListing(context.Background(), l))
	return l
}

func TestAssignTaxonomyUnknownAreaLeavesListingUntouched(t *testing.T) {
	f := newFixture(t)
	l := &models.Listing{ExternalID: 1, URL: "u"}

	err := f.repo.AssignTaxonomy(context.Background(), l, models.TaxonomyRef{Site: "sfbay", Area: "nope", Category: "apa"})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "area", verr.Field)
	assert.Nil(t, l.SiteID)
	assert.Nil(t, l.AreaID)
	assert.Nil(t, l.CategoryID)
}

func TestAssignTaxonomyRejectsAreaOfOtherSite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.repo.EnsureSite(ctx, "newyork")
	require.NoError(t, err)
	_, err = f.repo.EnsureArea(ctx, other, "brk")
	require.NoError(t, err)

	l := &models.Listing{ExternalID: 1, URL: "u"}
	err = f.repo.AssignTaxonomy(ctx, l, models.TaxonomyRef{Site: "sfbay", Area: "brk", Category: "apa"})
	assert.Error(t, err)
	assert.Nil(t, l.AreaID)
}

func TestDuplicateExternalIDRejected(t *testing.T) {
	f := newFixture(t)
	f.listing(t, 42)

	dup := &models.Listing{ExternalID: 42, URL: "https://other", Created: time.Now()}
	assert.Error(t, f.repo.CreateListing(context.Background(), dup))

	_, found, err := f.repo.FindListingByExternalID(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCommitDownloadSharesTagsAndImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.listing(t, 1), f.listing(t, 2)

	fields := &models.ListingFields{
		Tags:   []string{"laundry on site", "cats are OK - purrr"},
		Images: []string{"https://images.craigslist.org/00A_abc_600x450.jpg"},
		Text:   "body",
	}
	a.ApplyFields(fields)
	require.NoError(t, f.repo.CommitDownload(ctx, a, fields, a.RecordCheck(200, time.Now())))
	b.ApplyFields(fields)
	require.NoError(t, f.repo.CommitDownload(ctx, b, fields, b.RecordCheck(200, time.Now())))

	got, err := f.repo.GetListing(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, 2)
	require.Len(t, got.Images, 1)
	assert.Nil(t, got.Images[0].Full)
	assert.True(t, got.HasText())

	var tags, images int64
	require.NoError(t, f.repo.db.Model(&models.Tag{}).Count(&tags).Error)
	require.NoError(t, f.repo.db.Model(&models.Image{}).Count(&images).Error)
	assert.EqualValues(t, 2, tags)
	assert.EqualValues(t, 1, images)

	checks, err := f.repo.LatestChecks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, 200, checks[0].ResponseStatus)
}

func TestDeleteListingRemovesOnlyOrphanImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.listing(t, 1), f.listing(t, 2)

	shared := "https://images.craigslist.org/shared_600x450.jpg"
	own := "https://images.craigslist.org/own_600x450.jpg"
	require.NoError(t, f.repo.CommitDownload(ctx, a, &models.ListingFields{Images: []string{shared, own}, Tags: []string{"x"}}, nil))
	require.NoError(t, f.repo.CommitDownload(ctx, b, &models.ListingFields{Images: []string{shared}}, nil))
	require.NoError(t, f.repo.SaveScore(ctx, a.ID, 10, map[string]float64{"x": 10}, time.Now()))

	require.NoError(t, f.repo.DeleteListing(ctx, a.ID))

	_, err := f.repo.GetListing(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var urls []string
	require.NoError(t, f.repo.db.Model(&models.Image{}).Order("url").Pluck("url", &urls).Error)
	assert.Equal(t, []string{shared}, urls)

	var scores int64
	require.NoError(t, f.repo.db.Model(&models.ListingScore{}).Count(&scores).Error)
	assert.Zero(t, scores)
}

func TestImagesForListingSkipsDownloaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, 1)
	require.NoError(t, f.repo.CommitDownload(ctx, l, &models.ListingFields{Images: []string{"https://i/a_600x450.jpg", "https://i/b_600x450.jpg"}}, nil))

	ids, err := f.repo.ImagesForListing(ctx, l.ID, false)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	require.NoError(t, f.repo.SaveImageBytes(ctx, ids[0], []byte("full"), []byte("thumb")))

	pending, err := f.repo.ImagesForListing(ctx, l.ID, false)
	require.NoError(t, err)
	assert.Equal(t, ids[1:], pending)

	all, err := f.repo.ImagesForListing(ctx, l.ID, true)
	require.NoError(t, err)
	assert.Equal(t, ids, all)

	img, err := f.repo.GetImage(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, img.Downloaded())
}

func TestSaveScoreOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, 1)

	require.NoError(t, f.repo.SaveScore(ctx, l.ID, 10, map[string]float64{"a": 10}, time.Now()))
	require.NoError(t, f.repo.SaveScore(ctx, l.ID, -5, map[string]float64{"b": -5}, time.Now()))

	got, err := f.repo.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, -5.0, got.Score.Total)
	assert.Equal(t, map[string]float64{"b": -5}, got.Score.Breakdown)
}
