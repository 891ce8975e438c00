package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/config"
	"rental-pipeline/models"
)

func TestDispatchScrapesFallsBackToConfiguredTarget(t *testing.T) {
	h := newHarness(t)
	s := NewScheduler(h.runner)

	results, err := s.DispatchScrapes(h.ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	_, err = results[0].Get(h.ctx)
	require.NoError(t, err)
	h.drain(t)

	require.Len(t, h.source.queries, 1)
	assert.Equal(t, "eby", h.source.queries[0].Area)
	assert.Equal(t, "apa", h.source.queries[0].Category)
}

func TestDispatchScrapesUsesActiveSearches(t *testing.T) {
	h := newHarness(t)
	site, err := h.repo.SiteByName(h.ctx, "sfbay")
	require.NoError(t, err)
	area, err := h.repo.AreaByName(h.ctx, site, "eby")
	require.NoError(t, err)
	category, err := h.repo.CategoryByName(h.ctx, "apa")
	require.NoError(t, err)

	priceMax := 2800.0
	for _, s := range []*models.HousingSearch{
		{Name: "cheap", PriceMax: &priceMax, Enabled: true, AreaID: &area.ID, CategoryID: &category.ID, SiteID: &site.ID},
		{Name: "duplicate target", Enabled: true, AreaID: &area.ID, CategoryID: &category.ID, SiteID: &site.ID},
		{Name: "off", Enabled: false, AreaID: &area.ID, CategoryID: &category.ID, SiteID: &site.ID},
	} {
		require.NoError(t, h.repo.SaveSearch(h.ctx, s))
	}

	results, err := NewScheduler(h.runner).DispatchScrapes(h.ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	h.drain(t)

	require.Len(t, h.source.queries, 1)
	assert.Equal(t, "2800", h.source.queries[0].Filters["max_price"])
	assert.Equal(t, "1", h.source.queries[0].Filters["hasPic"])
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.ScrapeInterval = 0
		c.ExpirationInterval = 0
		c.NotifyInterval = 10 * time.Millisecond
	})

	ctx, cancel := context.WithTimeout(h.ctx, 50*time.Millisecond)
	defer cancel()
	err := NewScheduler(h.runner).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
