package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/models"
)

var testOptions = Options{
	TargetDate:    time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC),
	WorkLat:       37.876685,
	WorkLon:       -122.261998,
	WorkClose:     10,
	WorkMedium:    20,
	StudioPenalty: -1500,
	Location:      time.UTC,
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func rule(t *testing.T, name string) func(*models.Listing, time.Time) float64 {
	t.Helper()
	for _, r := range DefaultRules(testOptions) {
		if r.Name == name {
			return r.Eval
		}
	}
	t.Fatalf("no rule %q", name)
	return nil
}

func TestDefaultRuleNames(t *testing.T) {
	var names []string
	for _, r := range DefaultRules(testOptions) {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"age", "transit", "location", "title", "pictures", "tags", "availability", "bd_ba", "price"}, names)
}

func TestAge(t *testing.T) {
	eval := rule(t, "age")
	l := &models.Listing{Created: day(2017, 6, 1)}

	assert.Equal(t, 20.0, eval(l, day(2017, 6, 1).Add(5*time.Hour)))
	assert.Equal(t, 0.0, eval(l, day(2017, 6, 2)))
	assert.Equal(t, 0.0, eval(l, day(2017, 6, 4)))
	assert.Equal(t, -20.0, eval(l, day(2017, 6, 5)))
	assert.Equal(t, -20.0, eval(l, day(2017, 6, 7)))
	assert.Equal(t, -3000.0, eval(l, day(2017, 6, 8)))
}

func TestTransit(t *testing.T) {
	eval := rule(t, "transit")
	now := day(2017, 6, 1)

	assert.Equal(t, -200.0, eval(&models.Listing{}, now))

	l := &models.Listing{Lat: ptr(37.87), Lon: ptr(-122.268), TransitStop: &models.TransitStop{Lat: 37.87, Lon: -122.268}}
	assert.Equal(t, 500.0, eval(l, now))

	// 0.018 degrees of latitude is about 2 km.
	l.TransitStop.Lat = 37.888
	assert.InDelta(t, 100*(3.0-2.0), eval(l, now), 5)

	l.TransitStop.Lat = 38.0
	assert.Equal(t, 0.0, eval(l, now))
}

func TestWorkLocation(t *testing.T) {
	eval := rule(t, "location")
	now := day(2017, 6, 1)

	assert.Equal(t, 0.0, eval(&models.Listing{}, now))
	assert.InDelta(t, 1000.0, eval(&models.Listing{Lat: ptr(37.876685), Lon: ptr(-122.261998)}, now), 1e-6)
	// Roughly 15 km south: inside the medium radius.
	medium := eval(&models.Listing{Lat: ptr(37.7417), Lon: ptr(-122.261998)}, now)
	assert.Greater(t, medium, 0.0)
	assert.Less(t, medium, 250.0)
	assert.Equal(t, 0.0, eval(&models.Listing{Lat: ptr(37.3), Lon: ptr(-122.261998)}, now))
}

func TestTitleStudioPenalty(t *testing.T) {
	eval := rule(t, "title")
	assert.Equal(t, -1500.0, eval(&models.Listing{Name: "Sunny STUDIO in Rockridge"}, time.Time{}))
	assert.Equal(t, 0.0, eval(&models.Listing{Name: "2BR flat"}, time.Time{}))
}

func TestPictures(t *testing.T) {
	eval := rule(t, "pictures")
	images := func(n int) *models.Listing { return &models.Listing{Images: make([]models.Image, n)} }
	assert.Equal(t, -500.0, eval(images(0), time.Time{}))
	assert.Equal(t, -200.0, eval(images(1), time.Time{}))
	assert.Equal(t, 0.0, eval(images(3), time.Time{}))
	assert.Equal(t, 200.0, eval(images(4), time.Time{}))
}

func TestTags(t *testing.T) {
	eval := rule(t, "tags")
	tagged := func(names ...string) *models.Listing {
		l := &models.Listing{}
		for _, n := range names {
			l.Tags = append(l.Tags, models.Tag{Name: n})
		}
		return l
	}
	assert.Equal(t, 500.0, eval(tagged("w/d in unit", "laundry on site", "furnished", "no smoking", "condo"), time.Time{}))
	assert.Equal(t, 150.0, eval(tagged("w/d hookups"), time.Time{}))
	assert.Equal(t, -300.0+300, eval(tagged("no laundry on site", "house", "condo"), time.Time{}))
	assert.Equal(t, 5.0, eval(tagged("apartment"), time.Time{}))
	assert.Equal(t, 0.0, eval(tagged(), time.Time{}))
}

func TestAvailability(t *testing.T) {
	eval := rule(t, "availability")
	created := day(2017, 5, 20)
	at := func(y int, m time.Month, d int) *models.Listing {
		avail := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &models.Listing{Created: created, Available: &avail, Price: ptr(3000.0)}
	}

	assert.Equal(t, -500.0, eval(&models.Listing{Created: created}, time.Time{}))
	assert.InDelta(t, -150.0, eval(at(2017, 6, 1), time.Time{}), 1e-9)
	assert.InDelta(t, -1000.0, eval(at(2017, 5, 22), time.Time{}), 1e-9)
	assert.InDelta(t, -250.0, eval(at(2017, 7, 4), time.Time{}), 1e-9)
	assert.InDelta(t, -610.0, eval(at(2017, 5, 1), time.Time{}), 1e-9)
	assert.Equal(t, 0.0, eval(at(2017, 7, 1), time.Time{}))
}

func TestBedBath(t *testing.T) {
	eval := rule(t, "bd_ba")
	assert.Equal(t, 0.0, eval(&models.Listing{}, time.Time{}))
	assert.Equal(t, 1750.0, eval(&models.Listing{Bedrooms: ptr(2)}, time.Time{}))
	assert.Equal(t, -1562.5, eval(&models.Listing{Bedrooms: ptr(1), Bathrooms: ptr(3.0)}, time.Time{}))
	assert.Equal(t, 3*500+0.75*1200+3*250.0, eval(&models.Listing{Bedrooms: ptr(4), Bathrooms: ptr(3.5), Size: ptr(1200.0)}, time.Time{}))
}

func TestPrice(t *testing.T) {
	eval := rule(t, "price")
	assert.Equal(t, -4000.0, eval(&models.Listing{}, time.Time{}))
	assert.Equal(t, -3000.0, eval(&models.Listing{Price: ptr(3000.0), Bedrooms: ptr(2)}, time.Time{}))
	assert.Equal(t, -2500.0, eval(&models.Listing{Price: ptr(1500.0), Bedrooms: ptr(2)}, time.Time{}))
	assert.InDelta(t, -900.0-1000-(750.0/900-1)*1000, eval(&models.Listing{Price: ptr(900.0)}, time.Time{}), 1e-9)
}

func TestScoreSumsBreakdown(t *testing.T) {
	s := Default(testOptions)
	l := &models.Listing{
		Created:  day(2017, 6, 1),
		Name:     "Two bedroom",
		Price:    ptr(2800.0),
		Bedrooms: ptr(2),
		Lat:      ptr(37.87),
		Lon:      ptr(-122.27),
	}
	total, breakdown := s.Score(l, day(2017, 6, 1))
	require.Len(t, breakdown, 9)

	var sum float64
	for _, v := range breakdown {
		sum += v
	}
	assert.InDelta(t, sum, total, 1e-9)
	assert.Equal(t, breakdown, s.Info(l, day(2017, 6, 1)))
}

func TestCustomRules(t *testing.T) {
	s := New(Rule{Name: "flat", Eval: func(*models.Listing, time.Time) float64 { return 42 }})
	total, breakdown := s.Score(&models.Listing{}, time.Now())
	assert.Equal(t, 42.0, total)
	assert.Equal(t, map[string]float64{"flat": 42}, breakdown)
}
