package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/usecases"
)

// CatalogStats holds statistics about the synced station catalog.
type CatalogStats struct {
	Stations   int    `json:"stations"`
	Bikes      int    `json:"bikes"`
	Spaces     int    `json:"spaces"`
	LastUpdate string `json:"last_update,omitempty"`
}

// CatalogStatusHandler returns aggregate numbers for the station table.
func CatalogStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				count(*),
				COALESCE(sum(bikes_available), 0),
				COALESCE(sum(spaces_available), 0),
				COALESCE(max(updated_at)::text, '')
			FROM stations
		`)
		if err := row.Scan(&stats.Stations, &stats.Bikes, &stats.Spaces, &stats.LastUpdate); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListStationsHandler returns the station catalog, paginated.
func ListStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stations, err := deps.Stations.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(stations)
		if offset >= total {
			stations = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			stations = stations[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: stations, Pagination: pg})
	}
}

// GetStationHandler returns a single station by ID.
func GetStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "station id is required")
		}
		station, err := deps.Stations.GetByID(c.Context(), id)
		if err != nil {
			return errNotFound(c, "station not found")
		}
		return c.JSON(station)
	}
}

// NearbyStationsHandler returns stations within a radius of a point.
// Deprecated in favor of /v1/resolve, which also handles id and name
// lookups; kept while clients migrate.
func NearbyStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 500)
		limit := c.QueryInt("limit", 20)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}
		if limit <= 0 || limit > 50 {
			limit = 20
		}

		stations, err := deps.Stations.FindNearby(c.Context(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stations)
	}
}

// splitList parses a comma-separated query value, dropping empties.
func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// criteriaFromQuery builds resolver criteria from query parameters.
// Only the highest-priority criterion present is filled in; the
// service ignores anything below it anyway.
func criteriaFromQuery(c *fiber.Ctx) (usecases.Criteria, error) {
	var crit usecases.Criteria

	hasLat := c.Query("lat") != ""
	hasLon := c.Query("lon") != ""
	switch {
	case hasLat && hasLon:
		crit.Coords = &domain.GeoPoint{
			Lat: c.QueryFloat("lat"),
			Lon: c.QueryFloat("lon"),
		}
	case hasLat || hasLon:
		return crit, fiber.NewError(400, "lat and lon must be given together")
	case c.Query("id") != "":
		crit.ID = c.Query("id")
	case c.Query("ids") != "":
		crit.IDs = splitList(c.Query("ids"))
	case c.Query("name") != "":
		crit.Name = c.Query("name")
	case c.Query("names") != "":
		crit.Names = splitList(c.Query("names"))
	}
	return crit, nil
}

// mapView is the tile-placement payload attached to proximity outcomes
// and returned by the map endpoint.
type mapView struct {
	Center domain.GeoPoint     `json:"center"`
	Zoom   int                 `json:"zoom"`
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Tiles  []domain.PlacedTile `json:"tiles"`
}

// ResolveHandler runs the station resolver over query criteria.
// GET /v1/resolve?lat=..&lon=..        → proximity view around a point
// GET /v1/resolve?id=A021              → expand a single station
// GET /v1/resolve?ids=A021,B032        → flat list of exact matches
// GET /v1/resolve?name=kaivo           → first substring match, expanded
// GET /v1/resolve?names=a,b            → flat list of exact name matches
// With no criteria the outcome is "unresolvable" (the server has no
// device location to fall back to).
func ResolveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		crit, err := criteriaFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Resolver.Resolve(c.Context(), crit)
		if err != nil {
			return errUpstream(c, err.Error())
		}

		body := fiber.Map{"resolution": res}

		// Proximity outcomes get the tile placements for the map that
		// would be drawn under the markers.
		if res.Kind == domain.ResolutionProximity && res.Center != nil && deps.Map != nil {
			view := domain.Viewport{
				Width:  deps.Defaults.Width,
				Height: deps.Defaults.Height,
				Center: *res.Center,
				Zoom:   deps.Defaults.Zoom,
			}
			density := c.QueryFloat("density", 1)
			body["map"] = mapView{
				Center: *res.Center,
				Zoom:   view.Zoom,
				Width:  view.Width,
				Height: view.Height,
				Tiles:  deps.Map.Render(view, density),
			}
		}

		status := fiber.StatusOK
		if res.Kind == domain.ResolutionNotFound || res.Kind == domain.ResolutionUnresolvable {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(body)
	}
}

// MapHandler computes tile placements for an arbitrary viewport.
// GET /v1/map?lat=60.17&lon=24.94&zoom=15&width=1024&height=768&density=2
func MapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		center := domain.GeoPoint{
			Lat: c.QueryFloat("lat"),
			Lon: c.QueryFloat("lon"),
		}

		zoom := c.QueryInt("zoom", deps.Defaults.Zoom)
		width := c.QueryInt("width", deps.Defaults.Width)
		height := c.QueryInt("height", deps.Defaults.Height)
		density := c.QueryFloat("density", 1)

		if zoom < 0 || zoom > 20 {
			return errBadRequest(c, "zoom must be between 0 and 20")
		}
		if width <= 0 || height <= 0 {
			return errBadRequest(c, "width and height must be positive")
		}
		if width > 8192 || height > 8192 {
			return errBadRequest(c, "viewport too large (max 8192x8192)")
		}

		view := domain.Viewport{Width: width, Height: height, Center: center, Zoom: zoom}
		tiles := deps.Map.Render(view, density)

		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(mapView{
			Center: center,
			Zoom:   zoom,
			Width:  width,
			Height: height,
			Tiles:  tiles,
		})
	}
}
