package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/citybikes/bikemap/internal/adapters/http"
	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/usecases"
)

// ---- Mock repositories ----

type mockStationRepo struct {
	listFn       func(ctx context.Context) ([]domain.Station, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.Station, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Station, error)
}

func (m *mockStationRepo) Upsert(ctx context.Context, s *domain.Station) error       { return nil }
func (m *mockStationRepo) UpsertBatch(ctx context.Context, s []domain.Station) error { return nil }
func (m *mockStationRepo) List(ctx context.Context) ([]domain.Station, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockStationRepo) GetByID(ctx context.Context, id string) (*domain.Station, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockStationRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Station, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

type mockGateway struct {
	stationsFn func(ctx context.Context) ([]domain.Station, error)
	nearestFn  func(ctx context.Context, lat, lon float64) ([]domain.NearestEdge, error)
}

func (m *mockGateway) Stations(ctx context.Context) ([]domain.Station, error) {
	if m.stationsFn != nil {
		return m.stationsFn(ctx)
	}
	return nil, nil
}
func (m *mockGateway) Nearest(ctx context.Context, lat, lon float64) ([]domain.NearestEdge, error) {
	if m.nearestFn != nil {
		return m.nearestFn(ctx, lat, lon)
	}
	return nil, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Stations: usecases.NewStationService(&mockStationRepo{}, nil),
		Resolver: usecases.NewResolverService(&mockGateway{}, nil, nil),
		Map: usecases.NewMapService([]string{
			"https://tiles.example.com/base{size}/{z}/{x}/{y}.png",
		}, ""),
		Defaults: handler.MapDefaults{Zoom: 15, Width: 512, Height: 512},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func newJSONBody(s string) io.Reader {
	return strings.NewReader(s)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

var testCatalog = []domain.Station{
	{ID: "A021", Name: "kaivopuisto", Location: domain.GeoPoint{Lat: 60.155, Lon: 24.950}, BikesAvailable: 4, SpacesAvailable: 12},
	{ID: "B032", Name: "laivasillankatu", Location: domain.GeoPoint{Lat: 60.160, Lon: 24.955}, BikesAvailable: 0, SpacesAvailable: 20},
	{ID: "C044", Name: "viiskulma", Location: domain.GeoPoint{Lat: 60.158, Lon: 24.941}, BikesAvailable: 7, SpacesAvailable: 9},
}

func catalogGateway() *mockGateway {
	return &mockGateway{
		stationsFn: func(ctx context.Context) ([]domain.Station, error) {
			return testCatalog, nil
		},
		nearestFn: func(ctx context.Context, lat, lon float64) ([]domain.NearestEdge, error) {
			var edges []domain.NearestEdge
			for _, s := range testCatalog {
				edges = append(edges, domain.NearestEdge{Distance: 0, Station: s})
			}
			return edges, nil
		},
	}
}

// ---- Station handler tests ----

func TestListStations_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			listFn: func(ctx context.Context) ([]domain.Station, error) {
				return testCatalog, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/stations", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Station `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 3 {
		t.Errorf("expected 3 stations, got %d", len(result.Data))
	}
}

func TestListStations_Pagination(t *testing.T) {
	stations := make([]domain.Station, 5)
	for i := range stations {
		stations[i] = domain.Station{ID: fmt.Sprintf("S%03d", i), Name: fmt.Sprintf("Station %d", i)}
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			listFn: func(ctx context.Context) ([]domain.Station, error) { return stations, nil },
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/stations?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Station `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 stations in page, got %d", len(result.Data))
	}
	if result.Pagination.Offset != 2 {
		t.Errorf("expected offset 2, got %d", result.Pagination.Offset)
	}
}

func TestGetStation_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Station, error) {
				s := testCatalog[0]
				return &s, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/stations/A021", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var station domain.Station
	json.NewDecoder(resp.Body).Decode(&station)
	if station.ID != "A021" {
		t.Errorf("expected station A021, got %s", station.ID)
	}
}

func TestGetStation_NotFound(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Station, error) {
				return nil, fmt.Errorf("not found")
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/stations/NOPE", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestNearbyStations_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Station, error) {
				return testCatalog[:1], nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/stations/nearby?lat=60.155&lon=24.950&radius=500", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Deprecated endpoint must advertise its replacement
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header on /v1/stations/nearby")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header on /v1/stations/nearby")
	}

	var stations []domain.Station
	json.NewDecoder(resp.Body).Decode(&stations)
	if len(stations) != 1 {
		t.Errorf("expected 1 station, got %d", len(stations))
	}
}

func TestNearbyStations_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/stations/nearby", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestNearbyStations_BadRadius(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/stations/nearby?lat=60.15&lon=24.95&radius=50000", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Resolve handler tests ----

type resolveBody struct {
	Resolution struct {
		Kind     string           `json:"kind"`
		Center   *domain.GeoPoint `json:"center"`
		Stations []domain.Station `json:"stations"`
		Needle   string           `json:"needle"`
		Catalog  []domain.Station `json:"catalog"`
	} `json:"resolution"`
	Map *struct {
		Zoom  int               `json:"zoom"`
		Tiles []json.RawMessage `json:"tiles"`
	} `json:"map"`
}

func TestResolve_Coords_ReturnsProximityWithMap(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?lat=60.156&lon=24.951", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "proximity" {
		t.Fatalf("expected proximity, got %s", body.Resolution.Kind)
	}
	if body.Resolution.Center == nil {
		t.Fatal("expected center on proximity resolution")
	}
	if len(body.Resolution.Stations) != 3 {
		t.Errorf("expected 3 stations, got %d", len(body.Resolution.Stations))
	}
	if body.Map == nil {
		t.Fatal("expected map placements on proximity resolution")
	}
	if len(body.Map.Tiles) == 0 {
		t.Error("expected at least one tile")
	}
}

func TestResolve_SingleID_ExpandsToProximity(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?id=a021", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "proximity" {
		t.Fatalf("expected proximity for a single id match, got %s", body.Resolution.Kind)
	}
	if body.Resolution.Center == nil || body.Resolution.Center.Lat != 60.155 {
		t.Error("expected center at the matched station")
	}
}

func TestResolve_UnknownID_NotFoundWithCatalog(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?id=ZZZ", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "not_found" {
		t.Fatalf("expected not_found, got %s", body.Resolution.Kind)
	}
	if body.Resolution.Needle != "ZZZ" {
		t.Errorf("expected needle ZZZ, got %q", body.Resolution.Needle)
	}
	if len(body.Resolution.Catalog) != 3 {
		t.Errorf("expected full catalog in not_found payload, got %d", len(body.Resolution.Catalog))
	}
}

func TestResolve_MultipleIDs_ReturnsList(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?ids=A021,C044", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "list" {
		t.Fatalf("expected list, got %s", body.Resolution.Kind)
	}
	if len(body.Resolution.Stations) != 2 {
		t.Errorf("expected 2 stations, got %d", len(body.Resolution.Stations))
	}
	if body.Map != nil {
		t.Error("list resolutions must not carry map placements")
	}
}

func TestResolve_NameSubstring_ExpandsFirstMatch(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?name=KAIVO", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "proximity" {
		t.Fatalf("expected proximity, got %s", body.Resolution.Kind)
	}
}

func TestResolve_Names_FiltersExactMatches(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?names=kaivopuisto,viiskulma", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "list" {
		t.Fatalf("expected list, got %s", body.Resolution.Kind)
	}
	if len(body.Resolution.Stations) != 2 {
		t.Errorf("expected 2 stations, got %d", len(body.Resolution.Stations))
	}
}

func TestResolve_NoCriteria_Unresolvable(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/resolve", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var body resolveBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Resolution.Kind != "unresolvable" {
		t.Fatalf("expected unresolvable, got %s", body.Resolution.Kind)
	}
}

func TestResolve_LatWithoutLon_BadRequest(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/resolve?lat=60.15", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestResolve_UpstreamFailure_BadGateway(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(&mockGateway{
			stationsFn: func(ctx context.Context) ([]domain.Station, error) {
				return nil, fmt.Errorf("router unreachable")
			},
		}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/resolve?id=A021", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "upstream_error" {
		t.Errorf("expected upstream_error, got %s", apiErr.Code)
	}
}

// ---- Map handler tests ----

func TestMap_Success(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/map?lat=60.17&lon=24.94&zoom=15&width=512&height=512", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Zoom  int `json:"zoom"`
		Tiles []struct {
			URL string `json:"url"`
			X   int    `json:"x"`
			Y   int    `json:"y"`
		} `json:"tiles"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Zoom != 15 {
		t.Errorf("expected zoom 15, got %d", body.Zoom)
	}
	// 512px viewport at 256px tiles needs at least a 2x2 cover
	if len(body.Tiles) < 4 {
		t.Errorf("expected at least 4 tiles, got %d", len(body.Tiles))
	}
	for _, tile := range body.Tiles {
		if tile.URL == "" {
			t.Error("expected expanded tile URL")
		}
	}
}

func TestMap_MissingCenter(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/map", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMap_BadZoom(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/map?lat=60.17&lon=24.94&zoom=99", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %s", body.Status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Stations(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Stations = usecases.NewStationService(&mockStationRepo{
			listFn: func(ctx context.Context) ([]domain.Station, error) {
				return testCatalog, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	query := `{"query":"{ stations { id name bikes_available } }"}`
	req := httptest.NewRequest("POST", "/graphql", newJSONBody(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Stations []struct {
				ID string `json:"id"`
			} `json:"stations"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if len(result.Data.Stations) != 3 {
		t.Errorf("expected 3 stations, got %d", len(result.Data.Stations))
	}
}

func TestGraphQL_Resolve(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Resolver = usecases.NewResolverService(catalogGateway(), nil, nil)
	})
	app := setupApp(deps)

	query := `{"query":"{ resolve(id: \"A021\") { kind center { lat lon } } }"}`
	req := httptest.NewRequest("POST", "/graphql", newJSONBody(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Resolve struct {
				Kind string `json:"kind"`
			} `json:"resolve"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if result.Data.Resolve.Kind != "proximity" {
		t.Errorf("expected proximity, got %s", result.Data.Resolve.Kind)
	}
}
