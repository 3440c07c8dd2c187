package domain

import (
	"time"
)

// Station represents a bicycle rental station.
type Station struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Location        GeoPoint  `json:"location"`
	BikesAvailable  int       `json:"bikes_available"`
	SpacesAvailable int       `json:"spaces_available"`
	Distance        *float64  `json:"distance,omitempty"` // computed field, meters
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// TotalSlots is the station's capacity: bikes docked plus free spaces.
func (s Station) TotalSlots() int {
	return s.BikesAvailable + s.SpacesAvailable
}

// NearestEdge is one entry of an upstream nearest-stations response.
// Distance is the upstream's own metric and is never shown to users;
// the resolver recomputes it with haversine.
type NearestEdge struct {
	Distance float64 `json:"distance"`
	Station  Station `json:"station"`
}

// StationUpdate is a real-time availability change at a station.
type StationUpdate struct {
	ID              string    `json:"id"`
	Name            string    `json:"name,omitempty"`
	BikesAvailable  int       `json:"bikes_available"`
	SpacesAvailable int       `json:"spaces_available"`
	At              time.Time `json:"at"`
}
