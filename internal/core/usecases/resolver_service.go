package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/ports"
	"github.com/citybikes/bikemap/internal/pkg/geospatial"
	"github.com/citybikes/bikemap/internal/pkg/metrics"
)

const catalogCacheKey = "resolver:catalog"

// Criteria selects stations. Fields are tried in declaration order and
// the first non-empty one wins; the rest are ignored.
type Criteria struct {
	Coords *domain.GeoPoint
	ID     string
	IDs    []string
	Name   string
	Names  []string
}

// ResolverService turns a lookup criterion into a Resolution: a
// proximity view, a flat station list, or a not-found/unresolvable
// outcome, per the cardinality rule (>1 list, =1 proximity, 0 not found).
type ResolverService struct {
	gateway ports.StationGateway
	locator ports.Locator
	cache   ports.CacheService
}

// NewResolverService creates a new ResolverService. locator may be nil
// when no device-geolocation collaborator exists (server deployments).
func NewResolverService(gateway ports.StationGateway, locator ports.Locator, cache ports.CacheService) *ResolverService {
	return &ResolverService{gateway: gateway, locator: locator, cache: cache}
}

// Resolve runs the lookup. Upstream failures are returned as errors;
// empty matches are first-class outcomes, not errors.
func (s *ResolverService) Resolve(ctx context.Context, crit Criteria) (*domain.Resolution, error) {
	res, err := s.resolve(ctx, crit)
	if err != nil {
		return nil, err
	}
	metrics.ResolverOutcomes.WithLabelValues(string(res.Kind)).Inc()
	return res, nil
}

func (s *ResolverService) resolve(ctx context.Context, crit Criteria) (*domain.Resolution, error) {
	switch {
	case crit.Coords != nil:
		return s.proximity(ctx, *crit.Coords)

	case crit.ID != "":
		catalog, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		id := strings.ToUpper(crit.ID)
		for _, st := range catalog {
			if st.ID == id {
				return s.proximity(ctx, st.Location)
			}
		}
		return &domain.Resolution{Kind: domain.ResolutionNotFound, Needle: id, Catalog: catalog}, nil

	case len(crit.IDs) > 0:
		catalog, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(crit.IDs))
		for _, id := range crit.IDs {
			wanted[strings.ToUpper(strings.TrimSpace(id))] = true
		}
		var matched []domain.Station
		for _, st := range catalog {
			if wanted[st.ID] {
				matched = append(matched, st)
			}
		}
		return s.subset(ctx, matched, strings.Join(crit.IDs, ","), catalog)

	case crit.Name != "":
		catalog, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		name := strings.ToLower(crit.Name)
		for _, st := range catalog {
			if strings.Contains(strings.ToLower(st.Name), name) {
				return s.proximity(ctx, st.Location)
			}
		}
		// Name space is unbounded, so no catalog fallback is offered.
		return &domain.Resolution{Kind: domain.ResolutionNotFound, Needle: crit.Name}, nil

	case len(crit.Names) > 0:
		catalog, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(crit.Names))
		for _, n := range crit.Names {
			wanted[strings.ToLower(strings.TrimSpace(n))] = true
		}
		var matched []domain.Station
		for _, st := range catalog {
			if wanted[strings.ToLower(st.Name)] {
				matched = append(matched, st)
			}
		}
		return s.subset(ctx, matched, strings.Join(crit.Names, ","), nil)

	default:
		if s.locator == nil {
			return &domain.Resolution{Kind: domain.ResolutionUnresolvable}, nil
		}
		loc, err := s.locator.Locate(ctx)
		if err != nil {
			return &domain.Resolution{Kind: domain.ResolutionUnresolvable}, nil
		}
		return s.proximity(ctx, *loc)
	}
}

// subset applies the cardinality rule to a filtered catalog slice:
// several matches stay a flat list, a single match expands into a
// proximity view around it, none is a not-found outcome.
func (s *ResolverService) subset(ctx context.Context, matched []domain.Station, needle string, catalog []domain.Station) (*domain.Resolution, error) {
	switch len(matched) {
	case 0:
		return &domain.Resolution{Kind: domain.ResolutionNotFound, Needle: needle, Catalog: catalog}, nil
	case 1:
		return s.proximity(ctx, matched[0].Location)
	default:
		return &domain.Resolution{Kind: domain.ResolutionList, Stations: matched}, nil
	}
}

// proximity issues a nearest-stations query and re-annotates every hit
// with our own haversine distance: the upstream orders by its own
// metric, which may disagree, so the response order is only kept as a
// tie-break under the stable sort.
func (s *ResolverService) proximity(ctx context.Context, center domain.GeoPoint) (*domain.Resolution, error) {
	edges, err := s.gateway.Nearest(ctx, center.Lat, center.Lon)
	if err != nil {
		return nil, fmt.Errorf("nearest query: %w", err)
	}

	stations := make([]domain.Station, 0, len(edges))
	for _, edge := range edges {
		st := edge.Station
		d := geospatial.Haversine(center.Lat, center.Lon, st.Location.Lat, st.Location.Lon)
		st.Distance = &d
		stations = append(stations, st)
	}
	sort.SliceStable(stations, func(i, j int) bool {
		return *stations[i].Distance < *stations[j].Distance
	})

	return &domain.Resolution{
		Kind:     domain.ResolutionProximity,
		Center:   &center,
		Stations: stations,
	}, nil
}

// catalog fetches the full station list from the upstream, read-through
// cached (the catalog changes rarely; availability counts going stale
// in a list view is acceptable for the cache window).
func (s *ResolverService) catalog(ctx context.Context) ([]domain.Station, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, catalogCacheKey); err == nil {
			var stations []domain.Station
			if err := json.Unmarshal(data, &stations); err == nil {
				metrics.CacheHits.WithLabelValues("catalog").Inc()
				return stations, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("catalog").Inc()
	}

	stations, err := s.gateway.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("station catalog: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(stations); err == nil {
			_ = s.cache.Set(ctx, catalogCacheKey, data, 120)
		}
	}

	return stations, nil
}
