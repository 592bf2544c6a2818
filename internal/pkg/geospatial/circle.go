package geospatial

import (
	"errors"
	"fmt"
	"math"
)

// Ring is a closed sequence of [lon, lat] pairs in degrees.
type Ring [][2]float64

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidRadius      = errors.New("invalid radius")
	ErrInvalidSegments    = errors.New("invalid number of segments")
)

// CreateCirclePolygon approximates a ground circle of radiusMeters around
// lat/lon with numPoints segments per quadrant. The ring is closed and
// counter-clockwise. Longitudes stay continuous around the center, so they
// may exceed ±180 next to the antimeridian, unless the circle encloses a
// pole, in which case they are normalized.
func CreateCirclePolygon(lat, lon, radiusMeters float64, numPoints int) (Ring, error) {
	if !ValidateCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	if !(radiusMeters > 0) || math.IsInf(radiusMeters, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, radiusMeters)
	}
	if numPoints < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSegments, numPoints)
	}

	plan := PlanBuffer(lat, lon, radiusMeters)
	total := 4 * numPoints
	ring := make(Ring, 0, total+1)
	for i := 0; i < total; i++ {
		theta := 2 * math.Pi * float64(i) / float64(total)
		x := plan.CenterX + plan.ProjectedRadius*math.Cos(theta)
		y := plan.CenterY + plan.ProjectedRadius*math.Sin(theta)
		vLon, vLat := plan.Projection.Inverse(x, y)
		ring = append(ring, [2]float64{vLon, vLat})
	}
	ring = append(ring, ring[0])

	if plan.EnclosesPole {
		for i := range ring {
			ring[i][0] = normalizeLon(ring[i][0])
		}
		return ring, nil
	}
	return UnwrapRing(ring, lon), nil
}

// UnwrapRing rewrites longitudes in place so every vertex lies within 180
// degrees of centerLon.
func UnwrapRing(ring Ring, centerLon float64) Ring {
	for i := range ring {
		ring[i][0] = centerLon + normalizeLon(ring[i][0]-centerLon)
	}
	return ring
}

// EnclosesPole reports whether a circle of radiusMeters around lat/lon
// contains the north or south pole.
func EnclosesPole(lat, lon, radiusMeters float64) bool {
	return PlanBuffer(lat, lon, radiusMeters).EnclosesPole
}
