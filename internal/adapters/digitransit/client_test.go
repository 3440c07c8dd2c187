package digitransit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/citybikes/bikemap/internal/adapters/digitransit"
)

func graphqlServer(t *testing.T, respond func(query string, vars map[string]any) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req.Query, req.Variables)))
	}))
}

func TestClient_Stations(t *testing.T) {
	srv := graphqlServer(t, func(query string, vars map[string]any) string {
		if !strings.Contains(query, "bikeRentalStations") {
			t.Errorf("unexpected query: %s", query)
		}
		return `{"data":{"stations":[
			{"lat":60.17,"lon":24.94,"stationId":"A","name":"Kaivopuisto","bikesAvailable":4,"spacesAvailable":8},
			{"lat":60.18,"lon":24.95,"stationId":"B","name":"Laivasillankatu","bikesAvailable":2,"spacesAvailable":10}
		]}}`
	})
	defer srv.Close()

	client := digitransit.New(srv.URL)
	stations, err := client.Stations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].ID != "A" || stations[0].Location.Lat != 60.17 {
		t.Errorf("bad first station: %+v", stations[0])
	}
	if stations[1].TotalSlots() != 12 {
		t.Errorf("expected 12 total slots, got %d", stations[1].TotalSlots())
	}
}

func TestClient_Nearest(t *testing.T) {
	srv := graphqlServer(t, func(query string, vars map[string]any) string {
		if !strings.Contains(query, "BICYCLE_RENT") {
			t.Errorf("nearest query must filter to bike rental places: %s", query)
		}
		if vars["lat"] != 60.17 || vars["lon"] != 24.94 {
			t.Errorf("unexpected variables: %v", vars)
		}
		return `{"data":{"nearest":{"edges":[
			{"node":{"distance":42,"place":{"lat":60.17,"lon":24.94,"stationId":"A","name":"Kaivopuisto","bikesAvailable":4,"spacesAvailable":8}}}
		]}}}`
	})
	defer srv.Close()

	client := digitransit.New(srv.URL)
	edges, err := client.Nearest(context.Background(), 60.17, 24.94)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Distance != 42 || edges[0].Station.ID != "A" {
		t.Errorf("bad edge: %+v", edges[0])
	}
}

func TestClient_GraphQLError(t *testing.T) {
	srv := graphqlServer(t, func(query string, vars map[string]any) string {
		return `{"errors":[{"message":"rate limited"}]}`
	})
	defer srv.Close()

	client := digitransit.New(srv.URL)
	if _, err := client.Stations(context.Background()); err == nil {
		t.Fatal("expected error for graphql error payload")
	}
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := digitransit.New(srv.URL)
	if _, err := client.Stations(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
