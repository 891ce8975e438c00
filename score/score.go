// Package score ranks listings with a fixed list of independent rules.
package score

import (
	"math"
	"strings"
	"time"

	"rental-pipeline/config"
	"rental-pipeline/location"
	"rental-pipeline/models"
)

// Rule scores one aspect of a listing.
type Rule struct {
	Name string
	Eval func(l *models.Listing, now time.Time) float64
}

// Options are the tunable inputs of the default rules.
type Options struct {
	TargetDate    time.Time
	WorkLat       float64
	WorkLon       float64
	WorkClose     float64
	WorkMedium    float64
	StudioPenalty float64
	Location      *time.Location
}

// OptionsFromConfig reads the scoring options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetDate:    cfg.ScoreTargetDate,
		WorkLat:       cfg.ScoreWorkLat,
		WorkLon:       cfg.ScoreWorkLon,
		WorkClose:     cfg.ScoreWorkClose,
		WorkMedium:    cfg.ScoreWorkMedium,
		StudioPenalty: cfg.ScoreStudioPenalty,
		Location:      cfg.Location(),
	}
}

// Scorer sums the values of its rules. It is safe for concurrent use.
type Scorer struct {
	rules []Rule
}

// New creates a scorer over a private copy of rules.
func New(rules ...Rule) *Scorer {
	return &Scorer{rules: append([]Rule(nil), rules...)}
}

// Default creates a scorer with DefaultRules(opts).
func Default(opts Options) *Scorer {
	return New(DefaultRules(opts)...)
}

// Rules returns a copy of the rule list.
func (s *Scorer) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Info evaluates every rule.
func (s *Scorer) Info(l *models.Listing, now time.Time) map[string]float64 {
	info := make(map[string]float64, len(s.rules))
	for _, r := range s.rules {
		info[r.Name] = r.Eval(l, now)
	}
	return info
}

// Score returns the total and its per-rule breakdown.
func (s *Scorer) Score(l *models.Listing, now time.Time) (float64, map[string]float64) {
	info := s.Info(l, now)
	var total float64
	for _, r := range s.rules {
		total += info[r.Name]
	}
	return total, info
}

// DefaultRules are the standard ranking rules.
func DefaultRules(opts Options) []Rule {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return []Rule{
		{Name: "age", Eval: func(l *models.Listing, now time.Time) float64 { return age(l, now, loc) }},
		{Name: "transit", Eval: func(l *models.Listing, _ time.Time) float64 { return transit(l) }},
		{Name: "location", Eval: func(l *models.Listing, _ time.Time) float64 { return workDistance(l, opts) }},
		{Name: "title", Eval: func(l *models.Listing, _ time.Time) float64 { return title(l, opts.StudioPenalty) }},
		{Name: "pictures", Eval: func(l *models.Listing, _ time.Time) float64 { return pictures(l) }},
		{Name: "tags", Eval: func(l *models.Listing, _ time.Time) float64 { return tags(l) }},
		{Name: "availability", Eval: func(l *models.Listing, _ time.Time) float64 { return availability(l, opts.TargetDate, loc) }},
		{Name: "bd_ba", Eval: func(l *models.Listing, _ time.Time) float64 { return bedBath(l) }},
		{Name: "price", Eval: func(l *models.Listing, _ time.Time) float64 { return price(l) }},
	}
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func age(l *models.Listing, now time.Time, loc *time.Location) float64 {
	days := daysBetween(models.DateOf(l.Created, loc), models.DateOf(now, loc))
	if days < 0 {
		days = -days
	}
	switch {
	case days < 1:
		return 20
	case days < 4:
		return 0
	case days < 7:
		return -20
	default:
		return -3000
	}
}

func transit(l *models.Listing) float64 {
	d, ok := location.StopDistance(l)
	switch {
	case !ok:
		return -200
	case d < 1.0:
		return 500
	case d < 1.5:
		return (2.0 - d) * 500
	case d < 3.0:
		return (3.0 - d) * 100
	default:
		return 0
	}
}

func workDistance(l *models.Listing, opts Options) float64 {
	if !l.HasLocation() {
		return 0
	}
	d := location.Haversine(*l.Lat, *l.Lon, opts.WorkLat, opts.WorkLon)
	switch {
	case d < opts.WorkClose:
		return 1000 * ((opts.WorkClose - d) / opts.WorkClose)
	case d < opts.WorkMedium:
		return 250 * ((opts.WorkMedium - d) / opts.WorkMedium)
	default:
		return 0
	}
}

func title(l *models.Listing, penalty float64) float64 {
	if strings.Contains(strings.ToLower(l.Name), "studio") {
		return penalty
	}
	return 0
}

func pictures(l *models.Listing) float64 {
	switch n := len(l.Images); {
	case n == 0:
		return -500
	case n == 1:
		return -200
	case n < 4:
		return 0
	default:
		return 200
	}
}

func tags(l *models.Listing) float64 {
	has := func(name string) bool { return models.HasTag(l.Tags, name) }
	var s float64

	switch {
	case has("w/d in unit"):
		s += 500
	case has("laundry on site"), has("laundry in bldg"), has("w/d hookups"):
		s += 150
	case has("no laundry on site"):
		s -= 300
	}

	if has("furnished") {
		s -= 250
	}
	if has("no smoking") {
		s += 100
	}

	switch {
	case has("house"):
		s += 300
	case has("condo"):
		s += 150
	case has("apartment"):
		s += 5
	}
	return s
}

func availability(l *models.Listing, target time.Time, loc *time.Location) float64 {
	if l.Available == nil {
		return -500
	}
	available := models.DateOf(*l.Available, time.UTC)
	delta := float64(daysBetween(available, models.DateOf(target, time.UTC)))

	multiplier := 0.5
	if available.Before(models.DateOf(l.Created, loc)) {
		multiplier = 0.2
	}
	var p float64
	if l.Price != nil {
		p = *l.Price
	}

	switch {
	case delta > 32:
		return -0.5 * multiplier * (p / 30.0) * delta
	case delta > 0:
		return -0.1 * multiplier * (p / 30.0) * delta
	case delta < 0:
		return -0.25 * multiplier * 2000.0 / 3.0 * math.Abs(delta)
	default:
		return 0
	}
}

func bedBath(l *models.Listing) float64 {
	if l.Bedrooms == nil {
		return 0
	}
	bedrooms := float64(*l.Bedrooms)
	size := 250 * bedrooms
	if l.Size != nil {
		size = *l.Size
	}
	bathrooms := 1.5
	if l.Bathrooms != nil {
		bathrooms = *l.Bathrooms
	}

	var s float64
	if bathrooms > 2 && bathrooms > bedrooms {
		s -= 3000
	}
	return s + math.Min(bedrooms, 3)*500 + 0.75*size + math.Min(bathrooms, 3)*250
}

func price(l *models.Listing) float64 {
	if l.Price == nil {
		return -4000
	}
	p := *l.Price
	bedrooms := 1.0
	if l.Bedrooms != nil {
		bedrooms = float64(*l.Bedrooms)
	}
	var s float64
	if bedrooms*1000.0 > p {
		s += -1000 - ((bedrooms*750.0)/p-1.0)*1000
	}
	return -p + s
}
