package usecases

import (
	"fmt"
	"strings"
	"sync"

	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/pkg/mercator"
	"github.com/citybikes/bikemap/internal/pkg/metrics"
)

// highDensitySuffix is substituted for {size} in tile URL templates
// when the client reports a device pixel ratio above 1.
const highDensitySuffix = "@2x"

// MapService turns a location into drawable tile placements for a set
// of layered XYZ tile sources. It retains the last rendered view so a
// viewport resize can recompute the grid without the caller restating
// location and layers; that view is the only state it owns and it is
// replaced wholesale on every Render call.
type MapService struct {
	layers []string // URL templates, lowest z-order first
	apiKey string

	mu      sync.Mutex
	view    domain.Viewport
	density float64
	hasView bool
}

// NewMapService creates a MapService with the configured layer URL
// templates (placeholders {x}, {y}, {z}, {size}) and an optional API
// key appended to every tile URL.
func NewMapService(layers []string, apiKey string) *MapService {
	return &MapService{layers: layers, apiKey: apiKey}
}

// Render computes the full placement list for a viewport, one grid pass
// per layer in order (later layers draw on top). density is the device
// pixel ratio hint; anything above 1 selects high-density tiles.
func (s *MapService) Render(view domain.Viewport, density float64) []domain.PlacedTile {
	s.mu.Lock()
	s.view = view
	s.density = density
	s.hasView = true
	s.mu.Unlock()

	return s.place(view, density)
}

// Resize recomputes placements for the retained location and layers at
// a new viewport size. It fails if nothing has been rendered yet.
func (s *MapService) Resize(width, height int) ([]domain.PlacedTile, error) {
	s.mu.Lock()
	if !s.hasView {
		s.mu.Unlock()
		return nil, fmt.Errorf("no view rendered yet")
	}
	s.view.Width = width
	s.view.Height = height
	view, density := s.view, s.density
	s.mu.Unlock()

	return s.place(view, density), nil
}

func (s *MapService) place(view domain.Viewport, density float64) []domain.PlacedTile {
	tiles := mercator.VisibleTiles(view)

	placed := make([]domain.PlacedTile, 0, len(tiles)*len(s.layers))
	for i, layer := range s.layers {
		for _, tile := range tiles {
			placed = append(placed, domain.PlacedTile{
				Layer:         i,
				URL:           s.tileURL(layer, tile, density),
				TilePlacement: tile,
			})
		}
	}

	metrics.TilesPlaced.Add(float64(len(placed)))
	return placed
}

func (s *MapService) tileURL(template string, tile domain.TilePlacement, density float64) string {
	size := ""
	if density > 1 {
		size = highDensitySuffix
	}
	r := strings.NewReplacer(
		"{x}", fmt.Sprintf("%d", tile.X),
		"{y}", fmt.Sprintf("%d", tile.Y),
		"{z}", fmt.Sprintf("%d", tile.Zoom),
		"{size}", size,
	)
	return r.Replace(template) + s.apiKey
}
