package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := FromViper(viper.New())

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.False(t, cfg.CacheEnable)
	assert.True(t, cfg.CheckBBox)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.TaskSkew)
	assert.Equal(t, 50, cfg.MaxScrape)
	assert.Equal(t, 10, cfg.MaxMail)
	assert.Equal(t, "sfbay", cfg.Site)
	assert.Equal(t, "eby", cfg.Area)
	assert.Equal(t, "apa", cfg.Category)
	assert.Equal(t, map[string]string{"max_price": "3100", "min_price": "1000", "hasPic": "1"}, cfg.Filters)
	assert.Equal(t, time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC), cfg.ScoreTargetDate)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	v.Set("max_retries", 1)
	v.Set("cache_enable", true)
	v.Set("task_skew", "0s")
	v.Set("notify_urls", "logger://, generic://example.com")

	cfg := FromViper(v)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.True(t, cfg.CacheEnable)
	assert.Zero(t, cfg.TaskSkew)
	assert.Equal(t, []string{"logger://", "generic://example.com"}, cfg.NotifyURLs)
}

func TestParseFiltersSkipsMalformed(t *testing.T) {
	got := ParseFilters("max_price=3100, broken, =x,hasPic=1")
	assert.Equal(t, map[string]string{"max_price": "3100", "hasPic": "1"}, got)
}

func TestDSN(t *testing.T) {
	cfg := FromViper(viper.New())
	assert.Equal(t, "host=localhost port=5432 user=scraper password=scraper123 dbname=rental_db sslmode=disable", cfg.DSN())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
