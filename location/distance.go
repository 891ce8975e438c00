// Package location computes distances, nearest transit stops and geofence
// membership, and imports stops and boxes from CSV.
package location

import (
	"math"

	"rental-pipeline/models"
)

// EarthRadiusKm is the sphere radius used for great-circle distances.
const EarthRadiusKm = 6367.0

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dlat := (lat2 - lat1) * rad
	dlon := (lon2 - lon1) * rad
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// NearestStop scans stops linearly and returns the closest one with its
// distance. The first of equally distant stops wins.
func NearestStop(lat, lon float64, stops []models.TransitStop) (*models.TransitStop, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i := range stops {
		d := Haversine(lat, lon, stops[i].Lat, stops[i].Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, 0, false
	}
	return &stops[best], bestDist, true
}

// InAnyBox reports whether any box contains the point.
func InAnyBox(lat, lon float64, boxes []models.BoundingBox) bool {
	for _, b := range boxes {
		if b.Contains(lat, lon) {
			return true
		}
	}
	return false
}

// StopDistance is the distance from a listing to its assigned stop, or
// false when either side lacks coordinates.
func StopDistance(l *models.Listing) (float64, bool) {
	if l.TransitStop == nil || !l.HasLocation() {
		return 0, false
	}
	return Haversine(*l.Lat, *l.Lon, l.TransitStop.Lat, l.TransitStop.Lon), true
}
