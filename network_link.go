package sltm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
)

/* Link segments stuff */

// SegmentID is dense zero-based identifier of a directed link segment. FlowState arrays are indexed by it
type SegmentID int

// NoSegment marks absence of an exit segment, i.e. flow which terminates at a node
const NoSegment = SegmentID(-1)

// LinkSegment is directed link between two nodes
type LinkSegment struct {
	name               string
	geom               orb.LineString
	lengthMeters       float64
	freeSpeed          float64
	capacity           float64
	lanes              int
	ID                 SegmentID
	osmWayID           osm.WayID
	linkType           LinkType
	linkConnectionType LinkConnectionType
	sourceNodeID       NodeID
	targetNodeID       NodeID
}

// WithSegmentGeometry sets geometry of segment (WGS84). Length is evaluated via haversine formula
func WithSegmentGeometry(geom orb.LineString) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.geom = geom
		segment.lengthMeters = geo.LengthHaversign(geom)
	}
}

// WithLanes sets number of lanes
func WithLanes(lanes int) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.lanes = lanes
	}
}

// WithFreeSpeed sets free flow speed (km/h)
func WithFreeSpeed(freeSpeed float64) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.freeSpeed = freeSpeed
	}
}

// WithLinkType sets road class
func WithLinkType(linkType LinkType) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.linkType = linkType
	}
}

// WithLinkConnectionType marks ramps and other connections between roads
func WithLinkConnectionType(connectionType LinkConnectionType) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.linkConnectionType = connectionType
	}
}

// WithOSMWayID sets identifier of OSM way which segment has been produced from
func WithOSMWayID(wayID osm.WayID) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.osmWayID = wayID
	}
}

// WithSegmentName sets human readable name (e.g. street name)
func WithSegmentName(name string) func(*LinkSegment) {
	return func(segment *LinkSegment) {
		segment.name = name
	}
}

// Source returns upstream node of segment
func (segment *LinkSegment) Source() NodeID {
	return segment.sourceNodeID
}

// Target returns downstream node of segment
func (segment *LinkSegment) Target() NodeID {
	return segment.targetNodeID
}

// Capacity returns capacity in pcu/h
func (segment *LinkSegment) Capacity() float64 {
	return segment.capacity
}

func (segment *LinkSegment) Lanes() int {
	return segment.lanes
}

func (segment *LinkSegment) FreeSpeed() float64 {
	return segment.freeSpeed
}

// LengthMeters returns length of the geometry. Zero when no geometry provided
func (segment *LinkSegment) LengthMeters() float64 {
	return segment.lengthMeters
}

func (segment *LinkSegment) LinkType() LinkType {
	return segment.linkType
}

func (segment *LinkSegment) LinkConnectionType() LinkConnectionType {
	return segment.linkConnectionType
}

func (segment *LinkSegment) OSMWayID() osm.WayID {
	return segment.osmWayID
}

func (segment *LinkSegment) Name() string {
	return segment.name
}

func (segment *LinkSegment) Geom() orb.LineString {
	return segment.geom
}

// FreeFlowTravelTime returns travel time in hours. When either length or speed is unknown it returns 1 so segments could still be used as unit weights
func (segment *LinkSegment) FreeFlowTravelTime() float64 {
	if segment.lengthMeters <= 0 || segment.freeSpeed <= 0 {
		return 1.0
	}
	return (segment.lengthMeters / 1000.0) / segment.freeSpeed
}
