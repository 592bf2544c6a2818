package geospatial

import (
	"errors"
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

var ErrNotPolygon = errors.New("geometry is not a polygon")

// Geometry returns the ring as a single-ring GeoJSON polygon.
func (r Ring) Geometry() *geojson.Geometry {
	coords := make([][]float64, len(r))
	for i, p := range r {
		coords[i] = []float64{p[0], p[1]}
	}
	return geojson.NewPolygonGeometry([][][]float64{coords})
}

// MarshalRing encodes the ring as GeoJSON polygon text.
func MarshalRing(r Ring) ([]byte, error) {
	return r.Geometry().MarshalJSON()
}

// UnmarshalRing decodes the exterior ring of a GeoJSON polygon.
func UnmarshalRing(data []byte) (Ring, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	return RingFromGeometry(g)
}

// RingFromGeometry extracts the exterior ring of a polygon geometry.
func RingFromGeometry(g *geojson.Geometry) (Ring, error) {
	if g == nil || !g.IsPolygon() || len(g.Polygon) == 0 {
		return nil, ErrNotPolygon
	}
	exterior := g.Polygon[0]
	ring := make(Ring, 0, len(exterior))
	for _, p := range exterior {
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: position with %d values", ErrNotPolygon, len(p))
		}
		ring = append(ring, [2]float64{p[0], p[1]})
	}
	return ring, nil
}
