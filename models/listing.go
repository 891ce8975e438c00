package models

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// CreatedLayout is the source's "datetime" format, in the source's local time.
	CreatedLayout = "2006-01-02 15:04"
	// DateLayout is used for availability dates.
	DateLayout = "2006-01-02"
)

var priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// Listing is one rental posting. ExternalID and URL are globally unique.
type Listing struct {
	ID         uint   `gorm:"primaryKey"`
	ExternalID int64  `gorm:"column:external_id;uniqueIndex;not null"`
	URL        string `gorm:"uniqueIndex;size:512;not null"`

	Created   time.Time `gorm:"index"`
	Available *time.Time
	Expired   *time.Time `gorm:"index"`
	Lat       *float64
	Lon       *float64
	Name      string `gorm:"size:512"`
	Price     *float64
	Location  string `gorm:"size:512"`

	Bedrooms  *int
	Bathrooms *float64
	Size      *float64
	Page      *string `gorm:"type:text"`
	Text      *string `gorm:"type:text"`
	Notified  bool    `gorm:"index;not null;default:false"`

	SiteID        *uint
	Site          *Site
	AreaID        *uint
	Area          *Area
	CategoryID    *uint
	Category      *Category
	TransitStopID *uint
	TransitStop   *TransitStop

	Tags   []Tag   `gorm:"many2many:listing_tags;"`
	Images []Image `gorm:"many2many:listing_images;"`

	UserInfo *UserListingInfo `gorm:"foreignKey:ListingID"`
	Score    *ListingScore    `gorm:"foreignKey:ListingID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Listing) TableName() string { return "listings" }

// ParsePrice turns "$3,029" into 3029. Non-positive or unparseable prices are invalid.
func ParsePrice(raw string) (float64, error) {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0, invalid("price", raw, "no number")
	}
	p, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, invalid("price", raw, err.Error())
	}
	if p <= 0 {
		return 0, invalid("price", raw, "must be positive")
	}
	return p, nil
}

// ParseCreated parses the source's "YYYY-MM-DD HH:MM" local timestamp into UTC.
func ParseCreated(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(CreatedLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, invalid("created", raw, "want YYYY-MM-DD HH:MM")
	}
	return t.UTC(), nil
}

// ParseDate parses "YYYY-MM-DD" into UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, invalid("date", raw, "want YYYY-MM-DD")
	}
	return t, nil
}

// DateOf truncates t to its calendar date in loc, returned as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseExternalID parses the source's integer posting id.
func ParseExternalID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid("id", raw, "not an integer")
	}
	return id, nil
}

// FromResult builds a new, unsaved Listing from a raw search result.
// Tags and images are never populated here.
func FromResult(raw RawResult, loc *time.Location) (*Listing, TaxonomyRef, error) {
	ref := TaxonomyRef{Site: raw.Site, Area: raw.Area, Category: raw.Category}

	id, err := ParseExternalID(raw.ID)
	if err != nil {
		return nil, ref, err
	}
	if strings.TrimSpace(raw.URL) == "" {
		return nil, ref, invalid("url", "", "missing")
	}

	l := &Listing{
		ExternalID: id,
		URL:        strings.TrimSpace(raw.URL),
		Name:       raw.Name,
		Location:   raw.Where,
	}

	if raw.Datetime != "" {
		created, err := ParseCreated(raw.Datetime, loc)
		if err != nil {
			return nil, ref, err
		}
		l.Created = created
	} else {
		l.Created = time.Now().UTC()
	}

	if raw.Price != "" {
		p, err := ParsePrice(raw.Price)
		if err != nil {
			return nil, ref, err
		}
		l.Price = &p
	}

	if raw.Geotag != nil {
		lat, lon := raw.Geotag[0], raw.Geotag[1]
		l.Lat, l.Lon = &lat, &lon
	}

	return l, ref, nil
}

// ToResult renders the listing as the JSON snapshot written by export.
func (l *Listing) ToResult(loc *time.Location) RawResult {
	if loc == nil {
		loc = time.UTC
	}
	r := RawResult{
		ID:       strconv.FormatInt(l.ExternalID, 10),
		Datetime: l.Created.In(loc).Format(CreatedLayout),
		Where:    l.Location,
		URL:      l.URL,
		Name:     l.Name,
		HasImage: len(l.Images) > 0,
	}
	if l.Price != nil {
		r.Price = fmt.Sprintf("$%.0f", *l.Price)
	}
	if l.Lat != nil && l.Lon != nil {
		r.Geotag = &[2]float64{*l.Lat, *l.Lon}
	}
	if l.Site != nil {
		r.Site = l.Site.Name
	}
	if l.Area != nil {
		r.Area = l.Area.Name
	}
	if l.Category != nil {
		r.Category = l.Category.Name
	}
	return r
}

// ExternalKey is the external id as used in cache paths.
func (l *Listing) ExternalKey() string {
	return strconv.FormatInt(l.ExternalID, 10)
}

// HasText reports whether the detail page has already been extracted. An
// extracted page with an empty body counts.
func (l *Listing) HasText() bool {
	return l.Text != nil
}

// HasLocation reports whether both coordinates are known.
func (l *Listing) HasLocation() bool {
	return l.Lat != nil && l.Lon != nil
}

// SetSite assigns the site. It fails, leaving the listing untouched, when the
// listing's area belongs to a different site.
func (l *Listing) SetSite(site *Site) error {
	if site == nil {
		return invalid("site", "", "missing")
	}
	if l.Area != nil && l.Area.SiteID != site.ID {
		return invalid("site", site.Name, fmt.Sprintf("area %q belongs to another site", l.Area.Name))
	}
	l.Site, l.SiteID = site, &site.ID
	return nil
}

// SetArea assigns the area. It fails, leaving the listing untouched, when the
// area belongs to a different site than the listing's.
func (l *Listing) SetArea(area *Area) error {
	if area == nil {
		return invalid("area", "", "missing")
	}
	if l.SiteID != nil && *l.SiteID != area.SiteID {
		return invalid("area", area.Name, "does not belong to the listing's site")
	}
	l.Area, l.AreaID = area, &area.ID
	if l.SiteID == nil {
		siteID := area.SiteID
		l.SiteID = &siteID
		if area.Site != nil {
			l.Site = area.Site
		}
	}
	return nil
}

// SetCategory assigns the category.
func (l *Listing) SetCategory(c *Category) error {
	if c == nil {
		return invalid("category", "", "missing")
	}
	l.Category, l.CategoryID = c, &c.ID
	return nil
}

// ApplyFields copies the scalar attributes of a parsed detail page.
// Tags and images are attached by the repository.
func (l *Listing) ApplyFields(f *ListingFields) {
	if f.Lat != nil && f.Lon != nil {
		l.Lat, l.Lon = f.Lat, f.Lon
	}
	if f.Available != nil {
		l.Available = f.Available
	}
	if f.Size != nil {
		l.Size = f.Size
	}
	if f.Bedrooms != nil {
		l.Bedrooms = f.Bedrooms
	}
	if f.Bathrooms != nil {
		l.Bathrooms = f.Bathrooms
	}
	text := f.Text
	l.Text = &text
}

// RecordCheck builds an audit row for a fetch of the listing's page.
// A 404 marks the listing expired the first time it is seen.
func (l *Listing) RecordCheck(status int, now time.Time) *ListingExpirationCheck {
	if status == http.StatusNotFound && l.Expired == nil {
		at := now.UTC()
		l.Expired = &at
	}
	return &ListingExpirationCheck{ListingID: l.ID, Created: now.UTC(), ResponseStatus: status}
}

// ListingExpirationCheck is an immutable audit row of one fetch of a listing page.
type ListingExpirationCheck struct {
	ID             uint      `gorm:"primaryKey"`
	ListingID      uint      `gorm:"index;not null"`
	Created        time.Time `gorm:"index;not null"`
	ResponseStatus int       `gorm:"not null"`
}

func (ListingExpirationCheck) TableName() string { return "listing_expiration_checks" }
