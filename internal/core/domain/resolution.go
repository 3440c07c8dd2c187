package domain

// ResolutionKind discriminates the shape of a resolver outcome.
type ResolutionKind string

const (
	// ResolutionProximity is a map-plus-nearby-list view centered on a point.
	ResolutionProximity ResolutionKind = "proximity"
	// ResolutionList is a flat station list with no distances and no map.
	ResolutionList ResolutionKind = "list"
	// ResolutionNotFound means the criterion matched nothing.
	ResolutionNotFound ResolutionKind = "not_found"
	// ResolutionUnresolvable means no criterion was given and no device
	// location could be obtained.
	ResolutionUnresolvable ResolutionKind = "unresolvable"
)

// Resolution is the outcome of a station lookup. Exactly which fields
// are populated depends on Kind:
//
//   - proximity: Center and Stations (distance-annotated, ascending)
//   - list: Stations in catalog order, distances omitted
//   - not_found: Needle, plus Catalog for id-based lookups
//   - unresolvable: nothing
type Resolution struct {
	Kind     ResolutionKind `json:"kind"`
	Center   *GeoPoint      `json:"center,omitempty"`
	Stations []Station      `json:"stations,omitempty"`
	Needle   string         `json:"needle,omitempty"`
	Catalog  []Station      `json:"catalog,omitempty"`
}
