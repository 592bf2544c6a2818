package geospatial

import "math"

// AreaMethod selects how rings whose centroid lies beyond the polar area
// threshold are measured.
type AreaMethod string

const (
	// PolarAreaLegacy sums R²·|sinφ₁sinφ₂cosΔλ + cosφ₁cosφ₂| over the edges.
	// It overstates the area by orders of magnitude and is kept only so
	// stored results stay comparable.
	PolarAreaLegacy AreaMethod = "legacy"
	// PolarAreaLambert projects onto a polar Lambert azimuthal equal-area plane.
	PolarAreaLambert AreaMethod = "lambert"
)

const (
	polarAreaThreshold = 85.0
	albersHalfSpan     = 5.0
	albersLatLimit     = 85.0
)

// equalAreaProjection only needs the forward direction.
type equalAreaProjection interface {
	Forward(lon, lat float64) (x, y float64)
}

// CalculatePolygonArea returns the surface area of a ring in square meters
// using the legacy polar policy.
func CalculatePolygonArea(ring Ring) float64 {
	return CalculatePolygonAreaWith(ring, PolarAreaLegacy)
}

// CalculatePolygonAreaWith returns the surface area of a ring in square
// meters. Rings are closed implicitly; fewer than three distinct vertices
// yield 0.
func CalculatePolygonAreaWith(ring Ring, polar AreaMethod) float64 {
	ring = closeRing(ring)
	if len(ring) < 4 {
		return 0
	}

	cLon, cLat := RingCentroid(ring)
	if math.Abs(cLat) > polarAreaThreshold {
		if polar == PolarAreaLambert {
			return projectedArea(ring, newPolarLAEA(cLat < 0))
		}
		return SphericalExcessArea(ring)
	}

	lat1 := math.Max(-albersLatLimit, cLat-albersHalfSpan)
	lat2 := math.Min(albersLatLimit, cLat+albersHalfSpan)
	lat0 := math.Max(-albersLatLimit, math.Min(albersLatLimit, cLat))
	return projectedArea(ring, newAlbers(lat1, lat2, lat0, cLon))
}

// SphericalExcessArea is the legacy polar formula.
func SphericalExcessArea(ring Ring) float64 {
	ring = closeRing(ring)
	var area float64
	for i := 0; i < len(ring)-1; i++ {
		phi1 := toRad(ring[i][1])
		phi2 := toRad(ring[i+1][1])
		dLam := toRad(ring[i+1][0] - ring[i][0])
		area += math.Abs(math.Sin(phi1)*math.Sin(phi2)*math.Cos(dLam) +
			math.Cos(phi1)*math.Cos(phi2))
	}
	return area * EarthMeanRadius * EarthMeanRadius
}

// RingCentroid returns the area-weighted centroid of the ring treated as a
// planar polygon in lon/lat. Degenerate rings, and rings whose weighted
// centroid falls outside their own bounds, fall back to the vertex mean.
func RingCentroid(ring Ring) (lon, lat float64) {
	ring = closeRing(ring)
	if len(ring) == 0 {
		return 0, 0
	}

	x0, y0 := ring[0][0], ring[0][1]
	var a, cx, cy float64
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := ring[i][0]-x0, ring[i][1]-y0
		x2, y2 := ring[i+1][0]-x0, ring[i+1][1]-y0
		cross := x1*y2 - x2*y1
		a += cross
		cx += (x1 + x2) * cross
		cy += (y1 + y2) * cross
	}

	if math.Abs(a) > 1e-18 {
		lon = x0 + cx/(3*a)
		lat = y0 + cy/(3*a)
		minLat, minLon, maxLat, maxLon := RingBounds(ring)
		if lon >= minLon && lon <= maxLon && lat >= minLat && lat <= maxLat {
			return lon, lat
		}
	}
	return vertexMean(ring)
}

func vertexMean(ring Ring) (lon, lat float64) {
	n := len(ring)
	if n > 1 {
		n-- // closing vertex
	}
	for _, p := range ring[:n] {
		lon += p[0]
		lat += p[1]
	}
	return lon / float64(n), lat / float64(n)
}

// projectedArea is the shoelace area of the projected ring, accumulated
// relative to the first vertex.
func projectedArea(ring Ring, proj equalAreaProjection) float64 {
	x0, y0 := proj.Forward(ring[0][0], ring[0][1])
	var sum, px, py float64
	for i := 1; i < len(ring); i++ {
		x, y := proj.Forward(ring[i][0], ring[i][1])
		x -= x0
		y -= y0
		sum += px*y - x*py
		px, py = x, y
	}
	return math.Abs(sum) / 2
}

func closeRing(ring Ring) Ring {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	closed := make(Ring, len(ring)+1)
	copy(closed, ring)
	closed[len(ring)] = ring[0]
	return closed
}

// albers is the ellipsoidal Albers equal-area conic (Snyder ch. 14).
type albers struct {
	n, c, rho0, lon0 float64
}

// cylindricalEqualArea is the limit of the Albers cone when the standard
// parallels are symmetric about the equator.
type cylindricalEqualArea struct {
	k0, lon0 float64
}

func newAlbers(lat1, lat2, lat0, lon0 float64) equalAreaProjection {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	m1, m2 := parallelRatio(phi1), parallelRatio(phi2)
	q1, q2 := authalicQ(math.Sin(phi1)), authalicQ(math.Sin(phi2))

	n := (m1*m1 - m2*m2) / (q2 - q1)
	if math.Abs(n) < 1e-7 {
		return &cylindricalEqualArea{k0: m1, lon0: toRad(lon0)}
	}
	c := m1*m1 + n*q1
	q0 := authalicQ(math.Sin(toRad(lat0)))
	return &albers{
		n:    n,
		c:    c,
		rho0: wgs84A * math.Sqrt(c-n*q0) / n,
		lon0: toRad(lon0),
	}
}

func (p *albers) Forward(lon, lat float64) (x, y float64) {
	q := authalicQ(math.Sin(toRad(lat)))
	rho := wgs84A * math.Sqrt(math.Max(0, p.c-p.n*q)) / p.n
	theta := p.n * (toRad(lon) - p.lon0)
	return rho * math.Sin(theta), p.rho0 - rho*math.Cos(theta)
}

func (p *cylindricalEqualArea) Forward(lon, lat float64) (x, y float64) {
	q := authalicQ(math.Sin(toRad(lat)))
	return wgs84A * p.k0 * (toRad(lon) - p.lon0), wgs84A * q / (2 * p.k0)
}

// polarLAEA is the ellipsoidal polar Lambert azimuthal equal-area projection.
type polarLAEA struct {
	south bool
	qp    float64
}

func newPolarLAEA(south bool) *polarLAEA {
	return &polarLAEA{south: south, qp: authalicQ(1)}
}

func (p *polarLAEA) Forward(lon, lat float64) (x, y float64) {
	lam := toRad(lon)
	q := authalicQ(math.Sin(toRad(lat)))
	if p.south {
		rho := wgs84A * math.Sqrt(math.Max(0, p.qp+q))
		return rho * math.Sin(lam), rho * math.Cos(lam)
	}
	rho := wgs84A * math.Sqrt(math.Max(0, p.qp-q))
	return rho * math.Sin(lam), -rho * math.Cos(lam)
}
