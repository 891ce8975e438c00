package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rental-pipeline/models"
)

// ReadStops parses a GTFS stops.txt stream. Columns are located by header
// name, so feeds with extra columns work unchanged.
func ReadStops(r io.Reader, agency string) ([]models.TransitStop, error) {
	rows, err := readRecords(r, "stop_id", "stop_name", "stop_lat", "stop_lon")
	if err != nil {
		return nil, err
	}
	stops := make([]models.TransitStop, 0, len(rows))
	for i, row := range rows {
		lat, err1 := strconv.ParseFloat(row["stop_lat"], 64)
		lon, err2 := strconv.ParseFloat(row["stop_lon"], 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("stops line %d: %w", i+2, err)
		}
		stops = append(stops, models.TransitStop{
			Agency: agency,
			StopID: row["stop_id"],
			Name:   row["stop_name"],
			Lat:    lat,
			Lon:    lon,
		})
	}
	return stops, nil
}

// ReadBoxes parses bounding boxes from a CSV with the columns name,
// lat_min, lon_min, lat_max, lon_max and an optional enabled column.
func ReadBoxes(r io.Reader) ([]models.BoundingBox, error) {
	rows, err := readRecords(r, "name", "lat_min", "lon_min", "lat_max", "lon_max")
	if err != nil {
		return nil, err
	}
	boxes := make([]models.BoundingBox, 0, len(rows))
	for i, row := range rows {
		var vals [4]float64
		for j, col := range []string{"lat_min", "lon_min", "lat_max", "lon_max"} {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, fmt.Errorf("boxes line %d: %s: %w", i+2, col, err)
			}
			vals[j] = v
		}
		if vals[0] > vals[2] || vals[1] > vals[3] {
			return nil, fmt.Errorf("boxes line %d: min exceeds max", i+2)
		}
		enabled := true
		if raw, ok := row["enabled"]; ok && raw != "" {
			if enabled, err = strconv.ParseBool(raw); err != nil {
				return nil, fmt.Errorf("boxes line %d: enabled: %w", i+2, err)
			}
		}
		boxes = append(boxes, models.BoundingBox{
			Name: row["name"], LatMin: vals[0], LonMin: vals[1], LatMax: vals[2], LonMax: vals[3], Enabled: enabled,
		})
	}
	return boxes, nil
}

func readRecords(r io.Reader, required ...string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimPrefix(strings.TrimSpace(header[i]), "\uFEFF")
	}
	for _, col := range required {
		found := false
		for _, h := range header {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []map[string]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		out = append(out, row)
	}
	return out, nil
}
