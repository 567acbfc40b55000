package sltm

import "fmt"

// Route is single explicit path carrying fixed demand (pcu/h) from origin to destination.
// Empty Segments means that destination is not reachable (or origin equals destination)
type Route struct {
	Segments    []SegmentID
	Demand      float64
	Origin      NodeID
	Destination NodeID
}

func (route *Route) String() string {
	return fmt.Sprintf("%d->%d", route.Origin, route.Destination)
}

// IsEmpty returns true when route has no segments
func (route *Route) IsEmpty() bool {
	return len(route.Segments) == 0
}
