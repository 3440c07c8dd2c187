package ports

import (
	"context"

	"github.com/citybikes/bikemap/internal/core/domain"
)

// StationRepository persists the ingested station catalog.
type StationRepository interface {
	Upsert(ctx context.Context, station *domain.Station) error
	UpsertBatch(ctx context.Context, stations []domain.Station) error
	GetByID(ctx context.Context, id string) (*domain.Station, error)
	List(ctx context.Context) ([]domain.Station, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Station, error)
}
