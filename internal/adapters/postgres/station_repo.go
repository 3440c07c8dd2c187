package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/citybikes/bikemap/internal/core/domain"
)

// StationRepo implements ports.StationRepository with pgx.
type StationRepo struct {
	db *DB
}

// NewStationRepo creates a new StationRepo.
func NewStationRepo(db *DB) *StationRepo {
	return &StationRepo{db: db}
}

// Upsert inserts or updates a single station.
func (r *StationRepo) Upsert(ctx context.Context, s *domain.Station) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO stations (station_id, name, location, bikes_available, spaces_available, updated_at)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, now())
		ON CONFLICT (station_id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location,
		    bikes_available = EXCLUDED.bikes_available,
		    spaces_available = EXCLUDED.spaces_available,
		    updated_at = now()
	`, s.ID, s.Name, s.Location.Lon, s.Location.Lat, s.BikesAvailable, s.SpacesAvailable)
	return err
}

// UpsertBatch inserts many stations using pgx.Batch.
func (r *StationRepo) UpsertBatch(ctx context.Context, stations []domain.Station) error {
	batch := &pgx.Batch{}
	for _, s := range stations {
		batch.Queue(`
			INSERT INTO stations (station_id, name, location, bikes_available, spaces_available, updated_at)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, now())
			ON CONFLICT (station_id) DO UPDATE
			SET name = EXCLUDED.name, location = EXCLUDED.location,
			    bikes_available = EXCLUDED.bikes_available,
			    spaces_available = EXCLUDED.spaces_available,
			    updated_at = now()
		`, s.ID, s.Name, s.Location.Lon, s.Location.Lat, s.BikesAvailable, s.SpacesAvailable)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a station by its upstream identifier.
func (r *StationRepo) GetByID(ctx context.Context, id string) (*domain.Station, error) {
	var s domain.Station
	err := r.db.Pool.QueryRow(ctx, `
		SELECT station_id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       bikes_available, spaces_available, updated_at
		FROM stations WHERE station_id = $1
	`, id).Scan(
		&s.ID, &s.Name,
		&s.Location.Lat, &s.Location.Lon,
		&s.BikesAvailable, &s.SpacesAvailable, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the full catalog ordered by station id.
func (r *StationRepo) List(ctx context.Context) ([]domain.Station, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT station_id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       bikes_available, spaces_available, updated_at
		FROM stations
		ORDER BY station_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStations(rows, false)
}

// FindNearby returns stations within radiusMeters, nearest first, with
// the database's geodesic distance attached.
func (r *StationRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Station, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT station_id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       bikes_available, spaces_available, updated_at,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography) as distance
		FROM stations
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStations(rows, true)
}

func scanStations(rows pgx.Rows, withDistance bool) ([]domain.Station, error) {
	var stations []domain.Station
	for rows.Next() {
		var s domain.Station
		dest := []any{
			&s.ID, &s.Name,
			&s.Location.Lat, &s.Location.Lon,
			&s.BikesAvailable, &s.SpacesAvailable, &s.UpdatedAt,
		}
		if withDistance {
			s.Distance = new(float64)
			dest = append(dest, s.Distance)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}
