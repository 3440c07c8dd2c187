package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/ports"
)

// RealtimeService processes station availability changes observed by
// the poller: persist the new counts, then fan the update out to
// WebSocket clients via the broker.
type RealtimeService struct {
	stations  ports.StationRepository
	publisher ports.EventPublisher
}

// NewRealtimeService creates a new RealtimeService.
func NewRealtimeService(stations ports.StationRepository, publisher ports.EventPublisher) *RealtimeService {
	return &RealtimeService{stations: stations, publisher: publisher}
}

// ProcessAvailability stores a station's current counts and publishes
// an update event. Publish failures are non-fatal; the store is the
// source of truth and the stream is best effort.
func (s *RealtimeService) ProcessAvailability(ctx context.Context, station domain.Station) error {
	station.UpdatedAt = time.Now()

	if err := s.stations.Upsert(ctx, &station); err != nil {
		return fmt.Errorf("upsert station %s: %w", station.ID, err)
	}

	_ = s.publisher.PublishStationUpdate(ctx, &domain.StationUpdate{
		ID:              station.ID,
		Name:            station.Name,
		BikesAvailable:  station.BikesAvailable,
		SpacesAvailable: station.SpacesAvailable,
		At:              station.UpdatedAt,
	})

	return nil
}
