package location

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pipeline/models"
)

func TestHaversine(t *testing.T) {
	assert.Zero(t, Haversine(37.8, -122.2, 37.8, -122.2))
	// Downtown Berkeley to Embarcadero BART is roughly 14 km.
	d := Haversine(37.870104, -122.268133, 37.792874, -122.397020)
	assert.InDelta(t, 14.2, d, 0.5)
	assert.InDelta(t, d, Haversine(37.792874, -122.397020, 37.870104, -122.268133), 1e-9)
}

func TestNearestStopFirstMinimumWins(t *testing.T) {
	stops := []models.TransitStop{
		{StopID: "far", Lat: 38.5, Lon: -121.5},
		{StopID: "a", Lat: 37.80, Lon: -122.27},
		{StopID: "b", Lat: 37.80, Lon: -122.27},
	}
	stop, dist, ok := NearestStop(37.80, -122.27, stops)
	require.True(t, ok)
	assert.Equal(t, "a", stop.StopID)
	assert.Zero(t, dist)

	_, _, ok = NearestStop(0, 0, nil)
	assert.False(t, ok)
}

func TestInAnyBoxInclusiveEdges(t *testing.T) {
	boxes := []models.BoundingBox{{LatMin: 37.7, LonMin: -122.4, LatMax: 37.9, LonMax: -122.2}}
	assert.True(t, InAnyBox(37.7, -122.2, boxes))
	assert.True(t, InAnyBox(37.8, -122.3, boxes))
	assert.False(t, InAnyBox(38.0, -122.3, boxes))
	assert.False(t, InAnyBox(37.8, -122.3, nil))
}

func TestReadStops(t *testing.T) {
	feed := "\uFEFFstop_id,stop_name,stop_desc,stop_lat,stop_lon,zone_id\n" +
		"DBRK,Downtown Berkeley,,37.870104,-122.268133,DBRK\n" +
		"ASHB,Ashby,,37.852803,-122.270062,ASHB\n"
	stops, err := ReadStops(strings.NewReader(feed), "bart")
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, models.TransitStop{Agency: "bart", StopID: "DBRK", Name: "Downtown Berkeley", Lat: 37.870104, Lon: -122.268133}, stops[0])
}

func TestReadStopsRejectsBadRows(t *testing.T) {
	_, err := ReadStops(strings.NewReader("stop_id,stop_name\nX,Y\n"), "bart")
	assert.ErrorContains(t, err, "stop_lat")

	_, err = ReadStops(strings.NewReader("stop_id,stop_name,stop_lat,stop_lon\nX,Y,north,1\n"), "bart")
	assert.ErrorContains(t, err, "line 2")
}

func TestReadBoxes(t *testing.T) {
	data := "name,lat_min,lon_min,lat_max,lon_max,enabled\n" +
		"east bay,37.7,-122.35,37.95,-122.15,true\n" +
		"oakland hills,37.75,-122.2,37.85,-122.1,false\n"
	boxes, err := ReadBoxes(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.True(t, boxes[0].Enabled)
	assert.False(t, boxes[1].Enabled)
	assert.Equal(t, -122.15, boxes[0].LonMax)

	_, err = ReadBoxes(strings.NewReader("name,lat_min,lon_min,lat_max,lon_max\nbad,38,0,37,1\n"))
	assert.ErrorContains(t, err, "min exceeds max")
}
