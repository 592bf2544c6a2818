package domain

import "github.com/samirrijal/geopoly/internal/pkg/geospatial"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Ring is a closed sequence of [lon, lat] pairs.
type Ring = geospatial.Ring

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// RingBounds returns the bounding box of a ring.
func RingBounds(r Ring) Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.RingBounds(r)
	return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}
