package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/ports"
	"github.com/citybikes/bikemap/internal/pkg/metrics"
)

// StationService handles catalog reads against the ingested store.
type StationService struct {
	stations ports.StationRepository
	cache    ports.CacheService
}

// NewStationService creates a new StationService.
func NewStationService(stations ports.StationRepository, cache ports.CacheService) *StationService {
	return &StationService{stations: stations, cache: cache}
}

// List returns the full ingested catalog.
func (s *StationService) List(ctx context.Context) ([]domain.Station, error) {
	cacheKey := "stations:all"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stations []domain.Station
			if err := json.Unmarshal(data, &stations); err == nil {
				metrics.CacheHits.WithLabelValues("list").Inc()
				return stations, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("list").Inc()
	}

	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, err
	}

	// Availability counts drift quickly, so the window stays short.
	if s.cache != nil {
		if data, err := json.Marshal(stations); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return stations, nil
}

// GetByID returns a single station. IDs are case-normalized upstream
// identifiers (always uppercase).
func (s *StationService) GetByID(ctx context.Context, id string) (*domain.Station, error) {
	id = strings.ToUpper(id)

	cacheKey := "stations:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var station domain.Station
			if err := json.Unmarshal(data, &station); err == nil {
				metrics.CacheHits.WithLabelValues("station").Inc()
				return &station, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("station").Inc()
	}

	station, err := s.stations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(station); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return station, nil
}

// FindNearby returns stations within radiusMeters of the given point,
// distance-annotated and ordered by the store.
func (s *StationService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Station, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("stations:nearby:%.4f:%.4f:%.0f:%d", lat, lon, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stations []domain.Station
			if err := json.Unmarshal(data, &stations); err == nil {
				metrics.CacheHits.WithLabelValues("nearby").Inc()
				return stations, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("nearby").Inc()
	}

	stations, err := s.stations.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stations); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return stations, nil
}
