// Package digitransit implements ports.StationGateway against a
// Digitransit-style GraphQL routing API.
package digitransit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/pkg/metrics"
)

const stationsQuery = `query {
  stations: bikeRentalStations {
    lat
    lon
    stationId
    name
    bikesAvailable
    spacesAvailable
  }
}`

const nearestQuery = `query($lat: Float!, $lon: Float!) {
  nearest(
    lat: $lat,
    lon: $lon,
    maxDistance: 1000000,
    maxResults: 1000,
    filterByPlaceTypes: BICYCLE_RENT
  ) {
    edges {
      node {
        distance
        place {
          ...on BikeRentalStation {
            lat
            lon
            stationId
            name
            bikesAvailable
            spacesAvailable
          }
        }
      }
    }
  }
}`

// Client queries a routing API's GraphQL endpoint for bike rental
// stations. The API key, when present, is an opaque string already
// appended to the endpoint URL by the caller.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// New creates a Client for the given endpoint URL (API key included).
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type stationRecord struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	StationID       string  `json:"stationId"`
	Name            string  `json:"name"`
	BikesAvailable  int     `json:"bikesAvailable"`
	SpacesAvailable int     `json:"spacesAvailable"`
}

func (r stationRecord) toDomain() domain.Station {
	return domain.Station{
		ID:              r.StationID,
		Name:            r.Name,
		Location:        domain.GeoPoint{Lat: r.Lat, Lon: r.Lon},
		BikesAvailable:  r.BikesAvailable,
		SpacesAvailable: r.SpacesAvailable,
	}
}

// Stations returns the full bike rental station catalog.
func (c *Client) Stations(ctx context.Context) ([]domain.Station, error) {
	var payload struct {
		Stations []stationRecord `json:"stations"`
	}
	if err := c.post(ctx, "stations", gqlRequest{Query: stationsQuery}, &payload); err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(payload.Stations))
	for _, rec := range payload.Stations {
		stations = append(stations, rec.toDomain())
	}
	return stations, nil
}

// Nearest returns bike rental stations around a point, in the
// upstream's own distance order.
func (c *Client) Nearest(ctx context.Context, lat, lon float64) ([]domain.NearestEdge, error) {
	var payload struct {
		Nearest struct {
			Edges []struct {
				Node struct {
					Distance float64       `json:"distance"`
					Place    stationRecord `json:"place"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"nearest"`
	}
	req := gqlRequest{
		Query:     nearestQuery,
		Variables: map[string]any{"lat": lat, "lon": lon},
	}
	if err := c.post(ctx, "nearest", req, &payload); err != nil {
		return nil, err
	}

	edges := make([]domain.NearestEdge, 0, len(payload.Nearest.Edges))
	for _, e := range payload.Nearest.Edges {
		edges = append(edges, domain.NearestEdge{
			Distance: e.Node.Distance,
			Station:  e.Node.Place.toDomain(),
		})
	}
	return edges, nil
}

func (c *Client) post(ctx context.Context, name string, body gqlRequest, out any) error {
	metrics.UpstreamRequests.WithLabelValues(name).Inc()
	start := time.Now()
	err := c.doPost(ctx, body, out)
	metrics.UpstreamDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(name).Inc()
	}
	return err
}

func (c *Client) doPost(ctx context.Context, body gqlRequest, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json; charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post graphql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql endpoint returned %s", resp.Status)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
