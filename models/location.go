package models

// TransitStop is a public transit stop; (Agency, StopID) is unique.
type TransitStop struct {
	ID     uint    `gorm:"primaryKey"`
	Agency string  `gorm:"uniqueIndex:idx_stop_agency_id;size:64;not null"`
	StopID string  `gorm:"uniqueIndex:idx_stop_agency_id;size:64;not null"`
	Name   string  `gorm:"size:255"`
	Lat    float64 `gorm:"not null"`
	Lon    float64 `gorm:"not null"`
}

func (TransitStop) TableName() string { return "transit_stops" }

// BoundingBox is a lat/lon rectangle used as a geofence.
type BoundingBox struct {
	ID      uint    `gorm:"primaryKey"`
	Name    string  `gorm:"uniqueIndex;size:255;not null"`
	LatMin  float64 `gorm:"not null"`
	LonMin  float64 `gorm:"not null"`
	LatMax  float64 `gorm:"not null"`
	LonMax  float64 `gorm:"not null"`
	Enabled bool    `gorm:"not null"`
}

func (BoundingBox) TableName() string { return "bounding_boxes" }

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}
