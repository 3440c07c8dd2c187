package ports

import (
	"context"
	"errors"

	"github.com/citybikes/bikemap/internal/core/domain"
)

// StationGateway is the upstream transit-data API: the full station
// catalog, and a nearest-stations query around a point. The nearest
// response keeps the upstream's own ordering and distance metric.
type StationGateway interface {
	Stations(ctx context.Context) ([]domain.Station, error)
	Nearest(ctx context.Context, lat, lon float64) ([]domain.NearestEdge, error)
}

// ErrLocationUnavailable is returned by a Locator that cannot produce
// a position. The resolver turns it into an unresolvable outcome.
var ErrLocationUnavailable = errors.New("location unavailable")

// Locator supplies the caller's position when no explicit criterion is
// given (the device-geolocation collaborator).
type Locator interface {
	Locate(ctx context.Context) (*domain.GeoPoint, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishStationUpdate(ctx context.Context, update *domain.StationUpdate) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeStationUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.StationUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
