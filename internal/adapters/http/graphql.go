package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"location":         &graphql.Field{Type: geoPointType},
			"bikes_available":  &graphql.Field{Type: graphql.Int},
			"spaces_available": &graphql.Field{Type: graphql.Int},
			"distance":         &graphql.Field{Type: graphql.Float},
		},
	})

	resolutionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Resolution",
		Fields: graphql.Fields{
			"kind":     &graphql.Field{Type: graphql.String},
			"center":   &graphql.Field{Type: geoPointType},
			"stations": &graphql.Field{Type: graphql.NewList(stationType)},
			"needle":   &graphql.Field{Type: graphql.String},
			"catalog":  &graphql.Field{Type: graphql.NewList(stationType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stations": &graphql.Field{
				Type:        graphql.NewList(stationType),
				Description: "Full station catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Stations.List(p.Context)
				},
			},
			"station": &graphql.Field{
				Type:        stationType,
				Description: "Get a station by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Stations.GetByID(p.Context, id)
				},
			},
			"nearest": &graphql.Field{
				Type:        graphql.NewList(stationType),
				Description: "Stations near a location, closest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Stations.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"resolve": &graphql.Field{
				Type:        resolutionType,
				Description: "Run the station resolver over a criterion",
				Args: graphql.FieldConfigArgument{
					"lat":   &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"id":    &graphql.ArgumentConfig{Type: graphql.String},
					"ids":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"name":  &graphql.ArgumentConfig{Type: graphql.String},
					"names": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var crit usecases.Criteria
					lat, latOK := p.Args["lat"].(float64)
					lon, lonOK := p.Args["lon"].(float64)
					switch {
					case latOK && lonOK:
						crit.Coords = &domain.GeoPoint{Lat: lat, Lon: lon}
					case p.Args["id"] != nil:
						crit.ID = p.Args["id"].(string)
					case p.Args["ids"] != nil:
						crit.IDs = stringList(p.Args["ids"])
					case p.Args["name"] != nil:
						crit.Name = p.Args["name"].(string)
					case p.Args["names"] != nil:
						crit.Names = stringList(p.Args["names"])
					}
					return deps.Resolver.Resolve(p.Context, crit)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// stringList converts a graphql-go list argument to []string.
func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
