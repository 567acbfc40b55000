package sltm

import (
	"log/slog"

	"github.com/pkg/errors"
)

// PathFlowConsumer propagates demand along explicit routes
type PathFlowConsumer struct {
	routes []pathUnit
	log    *slog.Logger
	// number of routes which have been skipped (empty segments list or zero demand)
	skipped int
}

type pathUnit struct {
	route *Route
	// downstream node of each route segment
	nodes []NodeID
}

// NewPathFlowConsumer validates routes against network and prepares them for loading.
// Empty routes are skipped with a single warning per route. Routes with zero demand are skipped silently
func NewPathFlowConsumer(net *Network, routes []*Route, log *slog.Logger) (*PathFlowConsumer, error) {
	if log == nil {
		log = slog.Default()
	}
	consumer := &PathFlowConsumer{
		routes: make([]pathUnit, 0, len(routes)),
		log:    log,
	}
	for i, route := range routes {
		if err := net.ValidateRoute(route); err != nil {
			return nil, errors.Wrapf(err, "Route #%d is invalid", i)
		}
		if route.IsEmpty() {
			if route.Demand > 0 {
				log.Warn("Route has no segments, its demand will not be loaded", "route", route.String(), "demand", route.Demand)
			}
			consumer.skipped++
			continue
		}
		if route.Demand == 0 {
			consumer.skipped++
			continue
		}
		nodes := make([]NodeID, len(route.Segments))
		for j, segmentID := range route.Segments {
			nodes[j] = net.segments[segmentID].targetNodeID
		}
		consumer.routes = append(consumer.routes, pathUnit{route: route, nodes: nodes})
	}
	return consumer, nil
}

// Units returns number of loadable routes
func (consumer *PathFlowConsumer) Units() int {
	return len(consumer.routes)
}

// Skipped returns number of routes which are not loaded
func (consumer *PathFlowConsumer) Skipped() int {
	return consumer.skipped
}

// ConsumeUnit walks the route: every segment receives the flow which has been accepted by all upstream segments
func (consumer *PathFlowConsumer) ConsumeUnit(unit int, acc *FlowAccumulator) {
	path := consumer.routes[unit]
	segments := path.route.Segments
	flow := path.route.Demand
	acc.Inject(segments[0], flow)
	for i := 1; i < len(segments); i++ {
		prev, cur := segments[i-1], segments[i]
		acc.Turn(path.nodes[i-1], prev, cur, flow)
		acc.Send(prev, flow)
		flow *= acc.AcceptanceFactor(prev)
	}
	last := segments[len(segments)-1]
	acc.Send(last, flow)
	acc.Turn(path.nodes[len(segments)-1], last, NoSegment, flow)
}

// VisitUnitNodes visits downstream node of every route segment
func (consumer *PathFlowConsumer) VisitUnitNodes(unit int, visit func(NodeID)) {
	for _, node := range consumer.routes[unit].nodes {
		visit(node)
	}
}
