package sltm

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Network is arena of nodes and directed link segments. Identifiers are dense and stable for the lifetime of the network,
// so every per-segment or per-node quantity could be stored in flat slices
type Network struct {
	nodes    []*NetworkNode
	segments []*LinkSegment
}

// NewNetwork returns empty network
func NewNetwork() *Network {
	return &Network{
		nodes:    make([]*NetworkNode, 0),
		segments: make([]*LinkSegment, 0),
	}
}

// AddNode creates node and returns its identifier
func (net *Network) AddNode(options ...func(*NetworkNode)) NodeID {
	node := &NetworkNode{
		incomingSegments:  make([]SegmentID, 0),
		outcomingSegments: make([]SegmentID, 0),
		ID:                NodeID(len(net.nodes)),
		controlType:       NOT_SIGNAL,
	}
	for _, option := range options {
		option(node)
	}
	net.nodes = append(net.nodes, node)
	return node.ID
}

// AddSegment creates directed segment source -> target with given capacity (pcu/h)
func (net *Network) AddSegment(source, target NodeID, capacity float64, options ...func(*LinkSegment)) (SegmentID, error) {
	if !net.hasNode(source) {
		return NoSegment, errors.Wrapf(ErrNoSuchNode, "source node %d", source)
	}
	if !net.hasNode(target) {
		return NoSegment, errors.Wrapf(ErrNoSuchNode, "target node %d", target)
	}
	if !validCapacity(capacity) {
		return NoSegment, errors.Wrapf(ErrInvalidCapacity, "segment %d -> %d: %f", source, target, capacity)
	}
	segment := &LinkSegment{
		ID:           SegmentID(len(net.segments)),
		sourceNodeID: source,
		targetNodeID: target,
		capacity:     capacity,
		lanes:        1,
		linkType:     LINK_UNDEFINED,
	}
	for _, option := range options {
		option(segment)
	}
	net.segments = append(net.segments, segment)
	net.nodes[source].outcomingSegments = append(net.nodes[source].outcomingSegments, segment.ID)
	net.nodes[target].incomingSegments = append(net.nodes[target].incomingSegments, segment.ID)
	return segment.ID, nil
}

// Node returns node by its identifier. Panics on unknown identifier
func (net *Network) Node(id NodeID) *NetworkNode {
	return net.nodes[id]
}

// Segment returns segment by its identifier. Panics on unknown identifier
func (net *Network) Segment(id SegmentID) *LinkSegment {
	return net.segments[id]
}

func (net *Network) NodesNum() int {
	return len(net.nodes)
}

func (net *Network) SegmentsNum() int {
	return len(net.segments)
}

// SegmentBetween returns segment source -> target. When parallel segments exist the one with the largest capacity is returned
func (net *Network) SegmentBetween(source, target NodeID) (SegmentID, bool) {
	if !net.hasNode(source) || !net.hasNode(target) {
		return NoSegment, false
	}
	found := NoSegment
	for _, segmentID := range net.nodes[source].outcomingSegments {
		segment := net.segments[segmentID]
		if segment.targetNodeID != target {
			continue
		}
		if found == NoSegment || segment.capacity > net.segments[found].capacity {
			found = segmentID
		}
	}
	return found, found != NoSegment
}

// Validate checks capacities and adjacency consistency. Any returned error is a configuration error
func (net *Network) Validate() error {
	for i, segment := range net.segments {
		if segment.ID != SegmentID(i) {
			return errors.Wrapf(ErrInconsistentNetwork, "segment at position %d has identifier %d", i, segment.ID)
		}
		if !validCapacity(segment.capacity) {
			return errors.Wrapf(ErrInvalidCapacity, "segment %d: %f", segment.ID, segment.capacity)
		}
		if !net.hasNode(segment.sourceNodeID) || !net.hasNode(segment.targetNodeID) {
			return errors.Wrapf(ErrInconsistentNetwork, "segment %d refers to missing node", segment.ID)
		}
	}
	for i, node := range net.nodes {
		if node.ID != NodeID(i) {
			return errors.Wrapf(ErrInconsistentNetwork, "node at position %d has identifier %d", i, node.ID)
		}
		for _, segmentID := range node.incomingSegments {
			if !net.hasSegment(segmentID) || net.segments[segmentID].targetNodeID != node.ID {
				return errors.Wrapf(ErrInconsistentNetwork, "entry segment %d of node %d", segmentID, node.ID)
			}
		}
		for _, segmentID := range node.outcomingSegments {
			if !net.hasSegment(segmentID) || net.segments[segmentID].sourceNodeID != node.ID {
				return errors.Wrapf(ErrInconsistentNetwork, "exit segment %d of node %d", segmentID, node.ID)
			}
		}
	}
	return nil
}

// ValidateRoute checks that route is contiguous and connects its origin with its destination. Empty routes are valid
func (net *Network) ValidateRoute(route *Route) error {
	if route.Demand < 0 || math.IsNaN(route.Demand) {
		return errors.Wrapf(ErrNegativeDemand, "route %s", route)
	}
	if len(route.Segments) == 0 {
		return nil
	}
	for i, segmentID := range route.Segments {
		if !net.hasSegment(segmentID) {
			return errors.Wrapf(ErrNoSuchSegment, "route %s, position %d: %d", route, i, segmentID)
		}
		if i == 0 {
			continue
		}
		if net.segments[route.Segments[i-1]].targetNodeID != net.segments[segmentID].sourceNodeID {
			return errors.Wrapf(ErrDisconnectedRoute, "route %s: segments %d and %d", route, route.Segments[i-1], segmentID)
		}
	}
	if net.segments[route.Segments[0]].sourceNodeID != route.Origin {
		return errors.Wrapf(ErrDisconnectedRoute, "route %s does not start at its origin", route)
	}
	if net.segments[route.Segments[len(route.Segments)-1]].targetNodeID != route.Destination {
		return errors.Wrapf(ErrDisconnectedRoute, "route %s does not end at its destination", route)
	}
	return nil
}

func (net *Network) String() string {
	return fmt.Sprintf("Network(nodes: %d, segments: %d)", len(net.nodes), len(net.segments))
}

func (net *Network) hasNode(id NodeID) bool {
	return id >= 0 && int(id) < len(net.nodes)
}

func (net *Network) hasSegment(id SegmentID) bool {
	return id >= 0 && int(id) < len(net.segments)
}

func validCapacity(capacity float64) bool {
	return capacity > 0 && !math.IsInf(capacity, 0) && !math.IsNaN(capacity)
}
