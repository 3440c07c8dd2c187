// Package mercator implements spherical Web-Mercator projection and the
// tile-grid arithmetic behind an XYZ slippy map: which tiles cover a
// viewport, and where each tile sits in pixel space.
package mercator

import (
	"math"

	"github.com/citybikes/bikemap/internal/core/domain"
)

const (
	// TileSize is the edge length of a raster tile in CSS pixels.
	TileSize = 256

	earthRadius = 6378137.0 // WGS 84 equatorial radius, meters

	// diameter is the side length of the square Web-Mercator world.
	diameter = 2 * math.Pi * earthRadius
)

// Project maps a geographic point onto the Web-Mercator plane, shifted
// so the world spans [0, diameter] on each axis with y growing south
// (image-row order: smaller tile Y is further north).
//
// Latitudes of exactly ±90 project to ±Inf; callers feeding user input
// straight in get a degenerate tile grid, matching the unclamped XYZ
// convention rather than silently snapping to the projection limit.
func Project(p domain.GeoPoint) (x, y float64) {
	x = diameter * p.Lon / 360.0
	sinLat := math.Sin(p.Lat * math.Pi / 180.0)
	y = diameter * math.Log((1+sinLat)/(1-sinLat)) / (4 * math.Pi)
	return diameter/2 + x, diameter - (diameter/2 + y)
}

// VisibleTiles enumerates every tile needed to cover the viewport at
// its zoom level, with pixel offsets relative to the viewport top-left.
//
// The bounding box floors on the near edge and ceils on the far edge
// independently per axis, so the grid over-covers by up to one tile a
// side: no gap can appear when the center sits off a tile boundary.
// Indices are not clamped or wrapped; negative or >= 2^zoom indices are
// the tile source's problem, not ours.
func VisibleTiles(v domain.Viewport) []domain.TilePlacement {
	cx, cy := Project(v.Center)

	scale := TileSize * math.Pow(2, float64(v.Zoom)) / diameter
	px := cx * scale
	py := cy * scale

	halfW := float64(v.Width) / 2
	halfH := float64(v.Height) / 2

	minX := int(math.Floor((px - halfW) / TileSize))
	minY := int(math.Floor((py - halfH) / TileSize))
	maxX := int(math.Ceil((px + halfW) / TileSize))
	maxY := int(math.Ceil((py + halfH) / TileSize))

	tiles := make([]domain.TilePlacement, 0, (maxX-minX)*(maxY-minY))
	for x := minX; x < maxX; x++ {
		for y := minY; y < maxY; y++ {
			tiles = append(tiles, domain.TilePlacement{
				X:      x,
				Y:      y,
				Zoom:   v.Zoom,
				PixelX: float64(x)*TileSize - px + halfW,
				PixelY: float64(y)*TileSize - py + halfH,
			})
		}
	}
	return tiles
}
