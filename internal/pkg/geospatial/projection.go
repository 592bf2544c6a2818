package geospatial

import (
	"fmt"
	"math"
)

// Projection is a conformal projection from WGS84 longitude/latitude
// (degrees) to a metric plane.
type Projection interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
	// ScaleFactor is the point scale (projected / ground distance) at lon/lat.
	ScaleFactor(lon, lat float64) float64
	// EPSG is the code PostGIS knows the projection by.
	EPSG() int
	Name() string
}

const (
	polarLatThreshold      = 80.0
	antimeridianLonPadding = 175.0
)

// SelectProjection picks the projection a circle centered at lat/lon is
// buffered in: polar stereographic near the poles and the antimeridian,
// otherwise the UTM zone containing the point.
func SelectProjection(lat, lon float64) Projection {
	if math.Abs(lat) > polarLatThreshold || math.Abs(lon) > antimeridianLonPadding {
		return newPolarStereographic(lat < 0)
	}
	return newUTM(utmZone(lon), lat < 0)
}

func utmZone(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	return zone
}

// BufferPlan describes how a circle is drawn in projected space.
type BufferPlan struct {
	Projection Projection
	CenterX    float64
	CenterY    float64
	// ProjectedRadius is the ground radius scaled to the projection at the center.
	ProjectedRadius float64
	// EnclosesPole is set when the buffered circle contains the projection
	// origin of a polar aspect.
	EnclosesPole bool
}

// PlanBuffer projects the center and scales the radius so the buffer is a
// ground circle of radiusMeters.
func PlanBuffer(lat, lon, radiusMeters float64) BufferPlan {
	proj := SelectProjection(lat, lon)
	cx, cy := proj.Forward(lon, lat)
	plan := BufferPlan{
		Projection:      proj,
		CenterX:         cx,
		CenterY:         cy,
		ProjectedRadius: radiusMeters * proj.ScaleFactor(lon, lat),
	}
	if _, ok := proj.(*polarStereographic); ok {
		plan.EnclosesPole = math.Hypot(cx, cy) < plan.ProjectedRadius
	}
	return plan
}

// transverseMercator is a UTM zone (Snyder, Map Projections: A Working
// Manual, ch. 8).
type transverseMercator struct {
	zone  int
	south bool
	lon0  float64 // radians
}

const (
	utmK0                 = 0.9996
	utmFalseEasting       = 500000.0
	utmFalseNorthingSouth = 10000000.0
)

func newUTM(zone int, south bool) *transverseMercator {
	return &transverseMercator{
		zone:  zone,
		south: south,
		lon0:  toRad(float64(zone)*6 - 183),
	}
}

func (p *transverseMercator) EPSG() int {
	if p.south {
		return 32700 + p.zone
	}
	return 32600 + p.zone
}

func (p *transverseMercator) Name() string {
	hemi := "N"
	if p.south {
		hemi = "S"
	}
	return fmt.Sprintf("UTM zone %d%s", p.zone, hemi)
}

func (p *transverseMercator) terms(lon, lat float64) (a, t, c, n, phi float64) {
	phi = toRad(lat)
	sin, cos := math.Sincos(phi)
	tan := math.Tan(phi)
	n = wgs84A / math.Sqrt(1-wgs84E2*sin*sin)
	t = tan * tan
	c = wgs84Ep * cos * cos
	a = (toRad(lon) - p.lon0) * cos
	return a, t, c, n, phi
}

func (p *transverseMercator) Forward(lon, lat float64) (x, y float64) {
	a, t, c, n, phi := p.terms(lon, lat)
	ep2 := wgs84Ep
	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x = utmK0*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*ep2)*a5/120) + utmFalseEasting
	y = utmK0 * (meridianArc(phi) + n*math.Tan(phi)*
		(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))
	if p.south {
		y += utmFalseNorthingSouth
	}
	return x, y
}

func (p *transverseMercator) Inverse(x, y float64) (lon, lat float64) {
	x -= utmFalseEasting
	if p.south {
		y -= utmFalseNorthingSouth
	}
	e2 := wgs84E2
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := wgs84Ep

	mu := (y / utmK0) / (wgs84A * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sin1, cos1 := math.Sincos(phi1)
	tan1 := math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	w := 1 - e2*sin1*sin1
	n1 := wgs84A / math.Sqrt(w)
	r1 := wgs84A * (1 - e2) / math.Pow(w, 1.5)
	d := x / (n1 * utmK0)
	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tan1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
	lam := p.lon0 + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120)/cos1

	return toDeg(lam), toDeg(phi)
}

func (p *transverseMercator) ScaleFactor(lon, lat float64) float64 {
	a, t, c, _, _ := p.terms(lon, lat)
	a2 := a * a
	return utmK0 * (1 + (1+c)*a2/2 +
		(5-4*t+42*c+13*c*c-28*wgs84Ep)*a2*a2/24 +
		(61-148*t+16*t*t)*a2*a2*a2/720)
}

// polarStereographic is the ellipsoidal polar stereographic projection with
// a true-scale latitude of 71 degrees (EPSG:3995 north, EPSG:3031 south).
// The south aspect is evaluated with the north formulas on mirrored input.
type polarStereographic struct {
	south bool
	mc    float64
	tc    float64
}

const polarTrueScaleLat = 71.0

func newPolarStereographic(south bool) *polarStereographic {
	phic := toRad(polarTrueScaleLat)
	return &polarStereographic{
		south: south,
		mc:    parallelRatio(phic),
		tc:    stereoT(phic),
	}
}

func stereoT(phi float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-wgs84E*s)/(1+wgs84E*s), wgs84E/2)
}

func (p *polarStereographic) EPSG() int {
	if p.south {
		return 3031
	}
	return 3995
}

func (p *polarStereographic) Name() string {
	if p.south {
		return "Antarctic Polar Stereographic"
	}
	return "Arctic Polar Stereographic"
}

func (p *polarStereographic) mirror(lon, lat float64) (lam, phi float64) {
	lam, phi = toRad(lon), toRad(lat)
	if p.south {
		lam, phi = -lam, -phi
	}
	return lam, phi
}

func (p *polarStereographic) Forward(lon, lat float64) (x, y float64) {
	lam, phi := p.mirror(lon, lat)
	rho := wgs84A * p.mc * stereoT(phi) / p.tc
	x = rho * math.Sin(lam)
	y = -rho * math.Cos(lam)
	if p.south {
		x, y = -x, -y
	}
	return x, y
}

func (p *polarStereographic) Inverse(x, y float64) (lon, lat float64) {
	if p.south {
		x, y = -x, -y
	}
	rho := math.Hypot(x, y)
	t := rho * p.tc / (wgs84A * p.mc)
	chi := math.Pi/2 - 2*math.Atan(t)

	e2 := wgs84E2
	e4 := e2 * e2
	e6 := e4 * e2
	e8 := e6 * e2
	phi := chi +
		(e2/2+5*e4/24+e6/12+13*e8/360)*math.Sin(2*chi) +
		(7*e4/48+29*e6/240+811*e8/11520)*math.Sin(4*chi) +
		(7*e6/120+81*e8/1120)*math.Sin(6*chi) +
		(4279*e8/161280)*math.Sin(8*chi)

	var lam float64
	if rho > 0 {
		lam = math.Atan2(x, -y)
	}
	if p.south {
		phi, lam = -phi, -lam
	}
	return toDeg(lam), toDeg(phi)
}

func (p *polarStereographic) ScaleFactor(lon, lat float64) float64 {
	_, phi := p.mirror(lon, lat)
	if math.Abs(phi-math.Pi/2) < 1e-12 {
		e := wgs84E
		return p.mc * math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e)) / (2 * p.tc)
	}
	rho := wgs84A * p.mc * stereoT(phi) / p.tc
	return rho / (wgs84A * parallelRatio(phi))
}
