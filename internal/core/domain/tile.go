package domain

// TilePlacement addresses one XYZ raster tile and its pixel offset
// relative to the viewport's top-left corner. Offsets may be negative
// or exceed the viewport: edge tiles are over-enumerated so the grid
// has no gaps when the center does not align to a tile boundary.
type TilePlacement struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Zoom   int     `json:"zoom"`
	PixelX float64 `json:"px"`
	PixelY float64 `json:"py"`
}

// Viewport is the pixel rectangle a map is rendered into, together
// with the geographic center and zoom level shown in it.
type Viewport struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Center GeoPoint `json:"center"`
	Zoom   int      `json:"zoom"`
}

// PlacedTile is a drawable tile: a resolved image URL plus placement.
// Layer is the z-order index, lowest drawn first.
type PlacedTile struct {
	Layer int    `json:"layer"`
	URL   string `json:"url"`
	TilePlacement
}
