package sltm

import (
	"log/slog"
	"time"

	"github.com/LdDl/ch"
	"github.com/pkg/errors"
)

// ODDemand is demand (pcu/h) between two nodes
type ODDemand struct {
	Origin      NodeID
	Destination NodeID
	Demand      float64
}

// ShortestPathRouter finds free flow travel time shortest paths via contraction hierarchies
type ShortestPathRouter struct {
	network *Network
	graph   ch.Graph
	// fastest segment for every pair of adjacent nodes
	segments map[[2]NodeID]SegmentID
}

// NewShortestPathRouter prepares contraction hierarchies for network. Weights are free flow travel times
func NewShortestPathRouter(net *Network) (*ShortestPathRouter, error) {
	router := &ShortestPathRouter{
		network:  net,
		graph:    ch.Graph{},
		segments: make(map[[2]NodeID]SegmentID),
	}
	for _, node := range net.nodes {
		err := router.graph.CreateVertex(int64(node.ID))
		if err != nil {
			return nil, errors.Wrapf(err, "Can not create vertex %d", node.ID)
		}
	}
	for _, segment := range net.segments {
		pair := [2]NodeID{segment.sourceNodeID, segment.targetNodeID}
		if pair[0] == pair[1] {
			continue
		}
		if existing, ok := router.segments[pair]; ok && net.segments[existing].FreeFlowTravelTime() <= segment.FreeFlowTravelTime() {
			continue
		}
		router.segments[pair] = segment.ID
	}
	for pair, segmentID := range router.segments {
		err := router.graph.AddEdge(int64(pair[0]), int64(pair[1]), net.segments[segmentID].FreeFlowTravelTime())
		if err != nil {
			return nil, errors.Wrapf(err, "Can not wrap vertices %d and %d as edge", pair[0], pair[1])
		}
	}
	router.graph.PrepareContractionHierarchies()
	return router, nil
}

// Route returns shortest route for OD pair. Unreachable destination gives route with no segments
func (router *ShortestPathRouter) Route(od ODDemand) (*Route, error) {
	route := &Route{
		Origin:      od.Origin,
		Destination: od.Destination,
		Demand:      od.Demand,
	}
	if !router.network.hasNode(od.Origin) || !router.network.hasNode(od.Destination) {
		return nil, errors.Wrapf(ErrNoSuchNode, "OD pair %d->%d", od.Origin, od.Destination)
	}
	if od.Origin == od.Destination {
		return route, nil
	}
	cost, vertices := router.graph.ShortestPath(int64(od.Origin), int64(od.Destination))
	if cost < 0 || len(vertices) < 2 {
		return route, nil
	}
	route.Segments = make([]SegmentID, 0, len(vertices)-1)
	for i := 1; i < len(vertices); i++ {
		segmentID, ok := router.segments[[2]NodeID{NodeID(vertices[i-1]), NodeID(vertices[i])}]
		if !ok {
			return nil, errors.Wrapf(ErrInconsistentNetwork, "no segment between %d and %d", vertices[i-1], vertices[i])
		}
		route.Segments = append(route.Segments, segmentID)
	}
	return route, nil
}

// ShortestPathRoutes assigns every OD demand to its free flow shortest route
func ShortestPathRoutes(net *Network, demands []ODDemand, log *slog.Logger) ([]*Route, error) {
	if log == nil {
		log = slog.Default()
	}
	st := time.Now()
	router, err := NewShortestPathRouter(net)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare contraction hierarchies")
	}
	log.Info("Contraction hierarchies have been prepared", "elapsed", time.Since(st))
	routes := make([]*Route, 0, len(demands))
	for _, od := range demands {
		route, err := router.Route(od)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}
