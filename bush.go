package sltm

import (
	"sort"

	"github.com/pkg/errors"
)

// Bush is acyclic multi-path structure carrying demand of single origin towards many destinations.
// It is filled with per-edge flows (AddRoute, AddOriginFlow, AddTurnFlow, AddDestinationFlow) and then
// Build() derives splitting rates and topological order of its segments
type Bush struct {
	network *Network

	injections  map[SegmentID]float64
	turnFlows   map[TurnKey]float64
	terminating map[SegmentID]float64

	/* Available after Build() */
	order   []SegmentID
	targets []NodeID
	roots   []bushRoot
	exits   [][]bushExit
	demand  float64
	built   bool

	origin NodeID
}

type bushRoot struct {
	pos   int
	share float64
}

// bushExit is outgoing turn of a bush segment. Terminating flow has segment NoSegment and pos -1
type bushExit struct {
	segment SegmentID
	pos     int
	share   float64
}

// NewBush creates empty bush rooted at origin
func NewBush(net *Network, origin NodeID) *Bush {
	return &Bush{
		network:     net,
		origin:      origin,
		injections:  make(map[SegmentID]float64),
		turnFlows:   make(map[TurnKey]float64),
		terminating: make(map[SegmentID]float64),
	}
}

// AddRoute adds route's demand to every edge of the route. Empty routes and routes with zero demand are ignored
func (bush *Bush) AddRoute(route *Route) error {
	if route.Origin != bush.origin {
		return errors.Wrapf(ErrDisconnectedRoute, "route %s does not start at bush origin %d", route, bush.origin)
	}
	if err := bush.network.ValidateRoute(route); err != nil {
		return errors.Wrap(err, "Can't add route to bush")
	}
	if route.IsEmpty() || route.Demand == 0 {
		return nil
	}
	bush.AddOriginFlow(route.Segments[0], route.Demand)
	for i := 1; i < len(route.Segments); i++ {
		bush.AddTurnFlow(route.Segments[i-1], route.Segments[i], route.Demand)
	}
	bush.AddDestinationFlow(route.Segments[len(route.Segments)-1], route.Demand)
	return nil
}

// AddOriginFlow adds flow injected by origin into segment
func (bush *Bush) AddOriginFlow(segment SegmentID, flow float64) {
	if flow <= 0 {
		return
	}
	bush.injections[segment] += flow
	bush.built = false
}

// AddTurnFlow adds bush flow of turn entry -> exit
func (bush *Bush) AddTurnFlow(entry, exit SegmentID, flow float64) {
	if flow <= 0 {
		return
	}
	bush.turnFlows[NewTurnKey(entry, exit)] += flow
	bush.built = false
}

// AddDestinationFlow adds flow terminating at the downstream node of segment
func (bush *Bush) AddDestinationFlow(segment SegmentID, flow float64) {
	if flow <= 0 {
		return
	}
	bush.terminating[segment] += flow
	bush.built = false
}

// Build validates edges, evaluates splitting rates and topological order. Must be called before loading
func (bush *Bush) Build() error {
	net := bush.network
	if !net.hasNode(bush.origin) {
		return errors.Wrapf(ErrNoSuchNode, "bush origin %d", bush.origin)
	}
	// Collect and validate segments
	segmentsSet := make(map[SegmentID]struct{})
	for segmentID := range bush.injections {
		if !net.hasSegment(segmentID) {
			return errors.Wrapf(ErrNoSuchSegment, "bush %d root segment %d", bush.origin, segmentID)
		}
		if net.segments[segmentID].sourceNodeID != bush.origin {
			return errors.Wrapf(ErrDisconnectedRoute, "bush %d root segment %d does not leave origin", bush.origin, segmentID)
		}
		segmentsSet[segmentID] = struct{}{}
	}
	outgoing := make(map[SegmentID]float64)
	for key, flow := range bush.turnFlows {
		entry, exit := key.Entry(), key.Exit()
		if !net.hasSegment(entry) || !net.hasSegment(exit) {
			return errors.Wrapf(ErrNoSuchSegment, "bush %d turn %s", bush.origin, key)
		}
		if net.segments[entry].targetNodeID != net.segments[exit].sourceNodeID {
			return errors.Wrapf(ErrDisconnectedRoute, "bush %d turn %s", bush.origin, key)
		}
		segmentsSet[entry] = struct{}{}
		segmentsSet[exit] = struct{}{}
		outgoing[entry] += flow
	}
	for segmentID, flow := range bush.terminating {
		if !net.hasSegment(segmentID) {
			return errors.Wrapf(ErrNoSuchSegment, "bush %d terminating segment %d", bush.origin, segmentID)
		}
		segmentsSet[segmentID] = struct{}{}
		outgoing[segmentID] += flow
	}

	// Kahn's algorithm over turns. Segments are sorted first to keep order deterministic
	segments := make([]SegmentID, 0, len(segmentsSet))
	for segmentID := range segmentsSet {
		segments = append(segments, segmentID)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })
	successors := make(map[SegmentID][]SegmentID, len(segments))
	indegree := make(map[SegmentID]int, len(segments))
	for key := range bush.turnFlows {
		successors[key.Entry()] = append(successors[key.Entry()], key.Exit())
		indegree[key.Exit()]++
	}
	for _, next := range successors {
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	}
	queue := make([]SegmentID, 0, len(segments))
	for _, segmentID := range segments {
		if indegree[segmentID] == 0 {
			queue = append(queue, segmentID)
		}
	}
	order := make([]SegmentID, 0, len(segments))
	for len(queue) > 0 {
		segmentID := queue[0]
		queue = queue[1:]
		order = append(order, segmentID)
		for _, next := range successors[segmentID] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(segments) {
		return errors.Wrapf(ErrCyclicBush, "bush %d: %d of %d segments could not be ordered", bush.origin, len(segments)-len(order), len(segments))
	}

	position := make(map[SegmentID]int, len(order))
	for pos, segmentID := range order {
		position[segmentID] = pos
	}
	bush.order = order
	bush.targets = make([]NodeID, len(order))
	bush.exits = make([][]bushExit, len(order))
	for pos, segmentID := range order {
		bush.targets[pos] = net.segments[segmentID].targetNodeID
		total := outgoing[segmentID]
		if total <= 0 {
			// Nothing leaves segment explicitly: flow terminates at its downstream node
			bush.exits[pos] = []bushExit{{segment: NoSegment, pos: -1, share: 1.0}}
			continue
		}
		exits := make([]bushExit, 0, len(successors[segmentID])+1)
		for _, next := range successors[segmentID] {
			exits = append(exits, bushExit{
				segment: next,
				pos:     position[next],
				share:   bush.turnFlows[NewTurnKey(segmentID, next)] / total,
			})
		}
		if flow, ok := bush.terminating[segmentID]; ok {
			exits = append(exits, bushExit{segment: NoSegment, pos: -1, share: flow / total})
		}
		bush.exits[pos] = exits
	}

	bush.demand = 0
	for _, flow := range bush.injections {
		bush.demand += flow
	}
	bush.roots = make([]bushRoot, 0, len(bush.injections))
	for _, segmentID := range order {
		if flow, ok := bush.injections[segmentID]; ok {
			bush.roots = append(bush.roots, bushRoot{pos: position[segmentID], share: flow / bush.demand})
		}
	}
	bush.built = true
	return nil
}

// Origin returns root node of bush
func (bush *Bush) Origin() NodeID {
	return bush.origin
}

// Demand returns total demand injected by origin (pcu/h)
func (bush *Bush) Demand() float64 {
	if !bush.built {
		total := 0.0
		for _, flow := range bush.injections {
			total += flow
		}
		return total
	}
	return bush.demand
}

// IsEmpty returns true when bush has no segments
func (bush *Bush) IsEmpty() bool {
	return len(bush.injections) == 0 && len(bush.turnFlows) == 0 && len(bush.terminating) == 0
}

// Segments returns bush segments in topological order. Available after Build()
func (bush *Bush) Segments() []SegmentID {
	return bush.order
}

// SplittingRate returns share of entry's bush flow which continues towards exit (NoSegment for terminating share).
// Available after Build()
func (bush *Bush) SplittingRate(entry, exit SegmentID) float64 {
	for pos, segmentID := range bush.order {
		if segmentID != entry {
			continue
		}
		for _, bushExit := range bush.exits[pos] {
			if bushExit.segment == exit {
				return bushExit.share
			}
		}
		return 0
	}
	return 0
}
