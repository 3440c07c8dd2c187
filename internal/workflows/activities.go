package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/citybikes/bikemap/internal/core/ports"
)

// Cache keys dropped on refresh. Must stay in sync with the read-through
// keys used by the resolver and station services.
var refreshedCacheKeys = []string{
	"resolver:catalog",
	"stations:all",
}

// CacheInvalidator deletes several cache keys at once. Implemented by
// the valkey adapter.
type CacheInvalidator interface {
	DeleteMany(ctx context.Context, keys ...string) error
}

// RefreshActivities holds the activity implementations for the catalog
// refresh workflow.
type RefreshActivities struct {
	Gateway   ports.StationGateway
	Stations  ports.StationRepository
	Cache     CacheInvalidator
	Publisher ports.EventPublisher
}

// FetchAndStoreCatalog pulls the full station catalog from the upstream
// and upserts it, returning the number of stations synced.
func (a *RefreshActivities) FetchAndStoreCatalog(ctx context.Context, network string) (int, error) {
	stations, err := a.Gateway.Stations(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch catalog for %s: %w", network, err)
	}

	now := time.Now()
	for i := range stations {
		stations[i].UpdatedAt = now
	}

	if err := a.Stations.UpsertBatch(ctx, stations); err != nil {
		return 0, fmt.Errorf("store catalog: %w", err)
	}
	return len(stations), nil
}

// InvalidateCatalogCache drops the cache entries derived from the
// catalog so the next read repopulates them from fresh data.
func (a *RefreshActivities) InvalidateCatalogCache(ctx context.Context) error {
	if a.Cache == nil {
		log.Printf("no cache configured, skipping invalidation")
		return nil
	}
	if err := a.Cache.DeleteMany(ctx, refreshedCacheKeys...); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}

// BroadcastRefresh announces a completed refresh on the broadcast
// subject so WebSocket clients re-pull the catalog.
func (a *RefreshActivities) BroadcastRefresh(ctx context.Context, network string, count int) error {
	if a.Publisher == nil {
		log.Printf("REFRESH (no publisher) → network=%s stations=%d", network, count)
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event":    "catalog_refreshed",
		"network":  network,
		"stations": count,
		"at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return a.Publisher.PublishBroadcast(ctx, payload)
}
