package http

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

var circleArgs = graphql.FieldConfigArgument{
	"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	"radius": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
}

func circleFromArgs(args map[string]interface{}) domain.CircleRequest {
	return domain.CircleRequest{
		Center:       domain.GeoPoint{Lat: args["lat"].(float64), Lon: args["lon"].(float64)},
		RadiusMeters: args["radius"].(float64),
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	polygonType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Polygon",
		Fields: graphql.Fields{
			"coordinates": &graphql.Field{
				Type:        graphql.NewList(graphql.NewList(graphql.Float)),
				Description: "Closed exterior ring as [lon, lat] pairs",
			},
			"center":   &graphql.Field{Type: graphql.NewList(graphql.Float)},
			"radius":   &graphql.Field{Type: graphql.Float},
			"area_sqm": &graphql.Field{Type: graphql.Float},
			"cached":   &graphql.Field{Type: graphql.Boolean},
			"source":   &graphql.Field{Type: graphql.String},
		},
	})

	radiusCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RadiusCount",
		Fields: graphql.Fields{
			"radius": &graphql.Field{Type: graphql.Float},
			"count":  &graphql.Field{Type: graphql.Int},
		},
	})

	cacheStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CacheStats",
		Fields: graphql.Fields{
			"total":               &graphql.Field{Type: graphql.Int},
			"radius_distribution": &graphql.Field{Type: graphql.NewList(radiusCountType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"polygon": &graphql.Field{
				Type:        polygonType,
				Description: "Polygon approximating a ground circle",
				Args:        circleArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := circleFromArgs(p.Args)
					res, err := deps.Polygons.Create(p.Context, req)
					if err != nil {
						return nil, publicError(p.Context, err, "failed to build polygon")
					}
					coords := make([][]float64, len(res.Ring))
					for i, pt := range res.Ring {
						coords[i] = []float64{pt[0], pt[1]}
					}
					return map[string]interface{}{
						"coordinates": coords,
						"center":      []float64{req.Center.Lon, req.Center.Lat},
						"radius":      req.RadiusMeters,
						"area_sqm":    res.AreaSqm,
						"cached":      res.Cached(),
						"source":      string(res.Source),
					}, nil
				},
			},
			"cacheStats": &graphql.Field{
				Type:        cacheStatsType,
				Description: "Cached polygon counts by radius",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					stats, err := deps.Cache.Stats(p.Context)
					if err != nil {
						return nil, publicError(p.Context, err, "failed to read cache stats")
					}
					dist := make([]map[string]interface{}, 0, len(stats.ByRadius))
					for r, n := range stats.ByRadius {
						dist = append(dist, map[string]interface{}{"radius": r, "count": n})
					}
					sort.Slice(dist, func(i, j int) bool {
						return dist[i]["radius"].(float64) < dist[j]["radius"].(float64)
					})
					return map[string]interface{}{"total": stats.Total, "radius_distribution": dist}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"clearCache": &graphql.Field{
				Type:        graphql.Int,
				Description: "Delete every cache entry; returns the number deleted",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					n, err := deps.Cache.Clear(p.Context)
					if err != nil {
						return nil, publicError(p.Context, err, "failed to clear cache")
					}
					return n, nil
				},
			},
			"deleteCacheEntry": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Delete the cache entry for a circle",
				Args:        circleArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := circleFromArgs(p.Args)
					key := deps.Cache.Key(req.Center.Lat, req.Center.Lon, req.RadiusMeters)
					ok, err := deps.Cache.Delete(p.Context, key)
					if err != nil {
						return nil, publicError(p.Context, err, "failed to delete cache entry")
					}
					return ok, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
