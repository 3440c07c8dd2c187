package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/citybikes/bikemap/internal/adapters/digitransit"
	natsadapter "github.com/citybikes/bikemap/internal/adapters/nats"
	"github.com/citybikes/bikemap/internal/adapters/postgres"
	"github.com/citybikes/bikemap/internal/adapters/valkey"
	"github.com/citybikes/bikemap/internal/pkg/config"
	"github.com/citybikes/bikemap/internal/workflows"
)

func main() {
	cfg, err := config.Load("bikemap-refresher")
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

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Printf("valkey unavailable, refreshes will skip cache invalidation: %v", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Printf("nats unavailable, refreshes will not broadcast: %v", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: "localhost:7233",
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, "catalog-refresh-queue", worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.CatalogRefreshWorkflow)
	activities := &workflows.RefreshActivities{
		Gateway:  digitransit.New(cfg.Upstream.URL()),
		Stations: postgres.NewStationRepo(db),
	}
	if cache != nil {
		activities.Cache = cache
	}
	if publisher != nil {
		activities.Publisher = publisher
	}
	w.RegisterActivity(activities)

	log.Println("catalog refresher worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
