package sltm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

/* Nodes stuff */

// NodeID is dense zero-based identifier of a node
type NodeID int

// NetworkNode owns ordered lists of its entry and exit segments
type NetworkNode struct {
	incomingSegments  []SegmentID
	outcomingSegments []SegmentID
	name              string
	ID                NodeID
	osmNodeID         osm.NodeID
	controlType       ControlType
	geom              orb.Point
}

// ControlType is type of traffic control at node
type ControlType uint16

const (
	NOT_SIGNAL = ControlType(iota + 1)
	IS_SIGNAL
)

func (iotaIdx ControlType) String() string {
	return [...]string{"common", "signal"}[iotaIdx-1]
}

// WithNodeGeometry sets location of node (WGS84)
func WithNodeGeometry(pt orb.Point) func(*NetworkNode) {
	return func(node *NetworkNode) {
		node.geom = pt
	}
}

// WithOSMNodeID sets identifier of OSM node which network node has been produced from
func WithOSMNodeID(nodeID osm.NodeID) func(*NetworkNode) {
	return func(node *NetworkNode) {
		node.osmNodeID = nodeID
	}
}

func WithNodeName(name string) func(*NetworkNode) {
	return func(node *NetworkNode) {
		node.name = name
	}
}

func WithControlType(controlType ControlType) func(*NetworkNode) {
	return func(node *NetworkNode) {
		node.controlType = controlType
	}
}

// Entries returns entry segments in insertion order. Caller must not modify returned slice
func (node *NetworkNode) Entries() []SegmentID {
	return node.incomingSegments
}

// Exits returns exit segments in insertion order. Caller must not modify returned slice
func (node *NetworkNode) Exits() []SegmentID {
	return node.outcomingSegments
}

func (node *NetworkNode) OSMNodeID() osm.NodeID {
	return node.osmNodeID
}

func (node *NetworkNode) Name() string {
	return node.name
}

func (node *NetworkNode) ControlType() ControlType {
	return node.controlType
}

func (node *NetworkNode) Geom() orb.Point {
	return node.geom
}
