package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
)

// PostGISEngine builds circle polygons server-side. It buffers the center in
// the same projection the local engine would pick and measures the result on
// the spheroid, in a single round trip.
type PostGISEngine struct {
	db *DB
}

// NewPostGISEngine creates a new PostGISEngine.
func NewPostGISEngine(db *DB) *PostGISEngine {
	return &PostGISEngine{db: db}
}

// Name identifies the engine in logs and spans.
func (e *PostGISEngine) Name() string { return "postgis" }

const bufferQuery = `
	WITH circle AS (
		SELECT ST_Buffer(
			ST_Transform(ST_SetSRID(ST_MakePoint($1, $2), 4326), $3::integer),
			$4::double precision,
			$5::integer
		) AS geom
	)
	SELECT ST_AsGeoJSON(ST_Transform(geom, 4326), 9),
	       ST_Area(ST_Transform(geom, 4326)::geography)
	FROM circle
`

// Build computes the polygon for req with segments per quadrant.
func (e *PostGISEngine) Build(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
	lat, lon := req.Center.Lat, req.Center.Lon
	plan := geospatial.PlanBuffer(lat, lon, req.RadiusMeters)

	var (
		geom string
		area float64
	)
	err := e.db.Pool.QueryRow(ctx, bufferQuery,
		lon, lat, plan.Projection.EPSG(), plan.ProjectedRadius, segments,
	).Scan(&geom, &area)
	if err != nil {
		return nil, fmt.Errorf("postgis buffer: %w", err)
	}

	ring, err := geospatial.UnmarshalRing([]byte(geom))
	if err != nil {
		return nil, fmt.Errorf("postgis buffer: %w", err)
	}
	if !plan.EnclosesPole {
		ring = geospatial.UnwrapRing(ring, lon)
	}

	return &domain.PolygonResult{Ring: ring, AreaSqm: area, Source: domain.SourceEngine}, nil
}
