package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citybikes/bikemap/internal/adapters/digitransit"
	natsadapter "github.com/citybikes/bikemap/internal/adapters/nats"
	"github.com/citybikes/bikemap/internal/adapters/postgres"
	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/usecases"
	"github.com/citybikes/bikemap/internal/pkg/config"
	"github.com/citybikes/bikemap/internal/pkg/logging"
)

// availability is the last-seen bike/space count at a station, used to
// suppress publishes when nothing changed between polls.
type availability struct {
	bikes  int
	spaces int
}

func main() {
	cfg, err := config.Load("bikemap-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(os.Getenv("LOG_LEVEL"), "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	db := &postgres.DB{Pool: pool}
	repo := postgres.NewStationRepo(db)

	// NATS JetStream publisher
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer publisher.Close()

	svc := usecases.NewRealtimeService(repo, publisher)
	gateway := digitransit.New(cfg.Upstream.URL())

	pollInterval := time.Duration(cfg.Realtime.PollIntervalSeconds) * time.Second
	log.Printf("BikeMap availability poller — network %s, polling every %s", cfg.Upstream.Network, pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var mu sync.Mutex
	lastSeen := make(map[string]availability)

	// Run once immediately
	poll(ctx, gateway, svc, &mu, lastSeen)

	for {
		select {
		case <-ticker.C:
			poll(ctx, gateway, svc, &mu, lastSeen)
		case <-ctx.Done():
			return
		case sig := <-quit:
			log.Printf("received signal %v, shutting down availability poller", sig)
			cancel()
			// Give the in-flight poll time to finish
			time.Sleep(2 * time.Second)
			return
		}
	}
}

// poll fetches the catalog and pushes every station whose availability
// changed since the previous poll through the realtime service.
func poll(ctx context.Context, gateway *digitransit.Client, svc *usecases.RealtimeService, mu *sync.Mutex, lastSeen map[string]availability) {
	pollCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	stations, err := gateway.Stations(pollCtx)
	if err != nil {
		log.Printf("poll: %v", err)
		return
	}

	changed := 0
	for _, st := range stations {
		if !availabilityChanged(mu, lastSeen, st) {
			continue
		}
		if err := svc.ProcessAvailability(pollCtx, st); err != nil {
			log.Printf("[%s] process: %v", st.ID, err)
			continue
		}
		changed++
	}

	log.Printf("polled %d stations, %d changed", len(stations), changed)
}

// availabilityChanged records the station's counts and reports whether
// they differ from the previous poll. New stations always count as
// changed so they get persisted on first sight.
func availabilityChanged(mu *sync.Mutex, lastSeen map[string]availability, st domain.Station) bool {
	mu.Lock()
	defer mu.Unlock()

	prev, ok := lastSeen[st.ID]
	cur := availability{bikes: st.BikesAvailable, spaces: st.SpacesAvailable}
	lastSeen[st.ID] = cur
	return !ok || prev != cur
}
