package sltm

// FlowAccumulator collects flows produced by traversing demand units during single loading pass:
// sending flows per segment, origin injections per segment and turn sending flows at tracked nodes.
//
// Each worker owns its accumulator, so no synchronization is needed while traversal is in progress
type FlowAccumulator struct {
	state   *FlowState
	tracker *SplittingRateTracker

	sending    []float64
	injections []float64
	turns      map[TurnKey]float64

	updateSending bool
}

func newFlowAccumulator(segmentsNum int, state *FlowState, tracker *SplittingRateTracker, updateSending bool) *FlowAccumulator {
	return &FlowAccumulator{
		state:         state,
		tracker:       tracker,
		sending:       make([]float64, segmentsNum),
		injections:    make([]float64, segmentsNum),
		turns:         make(map[TurnKey]float64),
		updateSending: updateSending,
	}
}

// Inject records flow entering the network on segment at its origin
func (acc *FlowAccumulator) Inject(segment SegmentID, flow float64) {
	acc.injections[segment] += flow
}

// Send adds flow to the sending flow of segment. It is no-op for turns-only accumulators
func (acc *FlowAccumulator) Send(segment SegmentID, flow float64) {
	if !acc.updateSending {
		return
	}
	acc.sending[segment] += flow
}

// Turn records flow of turn entry -> exit at node. Flow is recorded only when node is tracked.
// Terminating flow is recorded with exit = NoSegment
func (acc *FlowAccumulator) Turn(node NodeID, entry, exit SegmentID, flow float64) {
	if !acc.tracker.IsTracked(node) {
		return
	}
	acc.turns[NewTurnKey(entry, exit)] += flow
}

// AcceptanceFactor returns current flow acceptance factor of segment
func (acc *FlowAccumulator) AcceptanceFactor(segment SegmentID) float64 {
	return acc.state.AcceptanceFactor(segment)
}

// UpdatesSending reports whether Send() has any effect
func (acc *FlowAccumulator) UpdatesSending() bool {
	return acc.updateSending
}

// turnsOnly returns view sharing storage with acc which ignores sending flow updates
func (acc *FlowAccumulator) turnsOnly() *FlowAccumulator {
	view := *acc
	view.updateSending = false
	return &view
}

// reset zeroes injections and turn flows. Sending storage is not touched: for the main accumulator it belongs to FlowState
func (acc *FlowAccumulator) reset(updateSending bool) {
	for i := range acc.injections {
		acc.injections[i] = 0
	}
	acc.turns = make(map[TurnKey]float64, len(acc.turns))
	acc.updateSending = updateSending
}

// merge adds flows of other accumulator to acc
func (acc *FlowAccumulator) merge(other *FlowAccumulator) {
	if acc.updateSending {
		for i, flow := range other.sending {
			acc.sending[i] += flow
		}
	}
	for i, flow := range other.injections {
		acc.injections[i] += flow
	}
	for key, flow := range other.turns {
		acc.turns[key] += flow
	}
}
