package geospatial

import "math"

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563

	// EarthMeanRadius is the spherical radius used by SphericalExcessArea.
	EarthMeanRadius = 6371000.0
)

var (
	wgs84E2 = wgs84F * (2 - wgs84F)
	wgs84E  = math.Sqrt(wgs84E2)
	wgs84Ep = wgs84E2 / (1 - wgs84E2) // second eccentricity squared
)

// authalicQ is Snyder's q (eq. 3-12) for the given sin(latitude).
func authalicQ(sinPhi float64) float64 {
	e, e2 := wgs84E, wgs84E2
	return (1 - e2) * (sinPhi/(1-e2*sinPhi*sinPhi) -
		(1/(2*e))*math.Log((1-e*sinPhi)/(1+e*sinPhi)))
}

// parallelRatio is Snyder's m (eq. 14-15): the radius of the parallel
// divided by the semi-major axis.
func parallelRatio(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-wgs84E2*s*s)
}

// meridianArc returns the distance along the meridian from the equator to phi.
func meridianArc(phi float64) float64 {
	e2 := wgs84E2
	e4 := e2 * e2
	e6 := e4 * e2
	return wgs84A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}
