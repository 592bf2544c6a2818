package geospatial

import "math"

// ValidateCoordinates reports whether lat/lon are WGS84 degrees in range.
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidateRadius reports whether 0 < radius <= maxRadius.
func ValidateRadius(radius, maxRadius float64) bool {
	return radius > 0 && radius <= maxRadius && !math.IsInf(radius, 0)
}
