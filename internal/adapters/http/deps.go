package http

import (
	"github.com/nats-io/nats.go"

	"github.com/citybikes/bikemap/internal/adapters/postgres"
	"github.com/citybikes/bikemap/internal/adapters/valkey"
	"github.com/citybikes/bikemap/internal/core/usecases"
)

// MapDefaults are the viewport parameters used when a request omits them.
type MapDefaults struct {
	Zoom   int
	Width  int
	Height int
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Stations *usecases.StationService
	Resolver *usecases.ResolverService
	Map      *usecases.MapService
	Defaults MapDefaults
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
