package domain

import (
	"time"
)

// CircleRequest asks for the polygon approximating a ground circle.
type CircleRequest struct {
	Center       GeoPoint `json:"center"`
	RadiusMeters float64  `json:"radius_meters"`
}

// Source records which path produced a polygon.
type Source string

const (
	SourceEngine   Source = "engine"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// PolygonResult is a computed (or cached) circle polygon.
type PolygonResult struct {
	Ring    Ring    `json:"ring"`
	AreaSqm float64 `json:"area_sqm"`
	Source  Source  `json:"source"`
}

// Cached reports whether the result was served from the cache.
func (r *PolygonResult) Cached() bool {
	return r.Source == SourceCache
}

// CacheEntry is a persisted polygon keyed on rounded request inputs.
type CacheEntry struct {
	Key          string     `json:"key"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	RadiusMeters float64    `json:"radius_meters"`
	Ring         Ring       `json:"ring"`
	AreaSqm      float64    `json:"area_sqm"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// CacheStats summarizes the durable cache.
type CacheStats struct {
	Total    int             `json:"total"`
	ByRadius map[float64]int `json:"by_radius"`
}

// RequestLog is one served request, appended to the spreadsheet and
// published as an event.
type RequestLog struct {
	Timestamp    time.Time `json:"timestamp"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	AreaSqm      float64   `json:"area_sqm"`
	Cached       bool      `json:"cached"`
	Source       Source    `json:"source"`
}
