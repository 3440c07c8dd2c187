package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citybikes/bikemap/internal/adapters/digitransit"
	"github.com/citybikes/bikemap/internal/adapters/postgres"
	"github.com/citybikes/bikemap/internal/pkg/config"
	"github.com/citybikes/bikemap/internal/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the transit-data routers to sync station catalogs from.
type Manifest struct {
	Source   string         `json:"source"`
	Networks []NetworkEntry `json:"networks"`
}

// NetworkEntry is one bicycle-share network: a GraphQL router endpoint
// plus the opaque API key appended to its URL.
type NetworkEntry struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key,omitempty"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("bikemap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	db := &postgres.DB{Pool: pool}
	repo := postgres.NewStationRepo(db)

	networks := loadNetworks(cfg)
	log.Printf("BikeMap catalog ingestor — %d networks", len(networks))

	// Filter networks (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent syncs

	for _, network := range networks {
		if len(slugFilter) > 0 && !slugFilter[network.Slug] {
			continue
		}

		wg.Add(1)
		go func(n NetworkEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := syncNetwork(ctx, repo, n); err != nil {
				log.Printf("ERROR [%s]: %v", n.Slug, err)
			}
		}(network)
	}

	wg.Wait()
	log.Println("catalog sync complete")
}

// loadNetworks reads a manifest if one is given, otherwise falls back
// to the single configured upstream router.
func loadNetworks(cfg *config.Config) []NetworkEntry {
	manifestPath := ""
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	if manifestPath == "" {
		return []NetworkEntry{{
			Name:     cfg.Upstream.Network,
			Slug:     cfg.Upstream.Network,
			Endpoint: cfg.Upstream.Endpoint,
			APIKey:   cfg.Upstream.APIKey,
		}}
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}
	return manifest.Networks
}

// syncNetwork pulls one network's station catalog and upserts it.
func syncNetwork(ctx context.Context, repo *postgres.StationRepo, n NetworkEntry) error {
	start := time.Now()
	client := digitransit.New(n.Endpoint + n.APIKey)

	stations, err := client.Stations(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range stations {
		stations[i].UpdatedAt = now
	}

	if err := repo.UpsertBatch(ctx, stations); err != nil {
		return err
	}

	metrics.StationsIngested.WithLabelValues(n.Slug).Add(float64(len(stations)))
	log.Printf("OK  [%s] %d stations in %s", n.Slug, len(stations), time.Since(start).Round(time.Millisecond))

	// Surface obviously empty feeds: an upstream returning zero
	// stations usually means a wrong endpoint, not an empty city.
	if len(stations) == 0 {
		log.Printf("WARN [%s] upstream returned an empty catalog", n.Slug)
	}

	return nil
}
