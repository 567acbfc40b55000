package sltm

import (
	"fmt"
)

// FlowState stores per-segment sending flows, receiving flows and flow acceptance factors (alphas).
// Arrays are indexed by SegmentID. FlowState is not safe for concurrent writers
type FlowState struct {
	sending   []float64
	receiving []float64
	alpha     []float64
	// number of completed loading passes over this state
	passes int
}

// NewFlowState allocates state for given number of segments. All factors are 1 and flows are 0
func NewFlowState(segmentsNum int) *FlowState {
	state := &FlowState{
		sending:   make([]float64, segmentsNum),
		receiving: make([]float64, segmentsNum),
		alpha:     make([]float64, segmentsNum),
	}
	for i := range state.alpha {
		state.alpha[i] = 1.0
	}
	return state
}

// Reset prepares state for a new network loading: sending flows are zeroed, receiving flows are set to
// segments' capacities (point queue) and every alpha is set to 1
func (state *FlowState) Reset(net *Network) {
	if len(state.sending) != net.SegmentsNum() {
		*state = *NewFlowState(net.SegmentsNum())
	}
	for i, segment := range net.segments {
		state.sending[i] = 0
		state.receiving[i] = segment.capacity
		state.alpha[i] = 1.0
	}
	state.passes = 0
}

// resetSendingFlows zeroes sending flows only
func (state *FlowState) resetSendingFlows() {
	for i := range state.sending {
		state.sending[i] = 0
	}
}

// SendingFlow returns sending flow (pcu/h) of segment
func (state *FlowState) SendingFlow(id SegmentID) float64 {
	return state.sending[id]
}

// ReceivingFlow returns receiving flow (pcu/h) of segment
func (state *FlowState) ReceivingFlow(id SegmentID) float64 {
	return state.receiving[id]
}

// AcceptanceFactor returns flow acceptance factor of segment.
// Segment which has not been initialised yields 1 before the first pass has been completed. After that it is a bug and it panics
func (state *FlowState) AcceptanceFactor(id SegmentID) float64 {
	if id < 0 || int(id) >= len(state.alpha) {
		if state.passes == 0 {
			return 1.0
		}
		panic(fmt.Sprintf("flow acceptance factor of segment %d requested after %d passes, but segment has never been initialised", id, state.passes))
	}
	return state.alpha[id]
}

// Inflow returns flow entering segment (pcu/h). Under point queue assumption it equals the sending flow
func (state *FlowState) Inflow(id SegmentID) float64 {
	return state.sending[id]
}

// Outflow returns accepted flow leaving segment at its downstream node (pcu/h)
func (state *FlowState) Outflow(id SegmentID) float64 {
	return state.sending[id] * state.alpha[id]
}

// SendingFlows returns copy of sending flows
func (state *FlowState) SendingFlows() []float64 {
	return append([]float64(nil), state.sending...)
}

// AcceptanceFactors returns copy of flow acceptance factors
func (state *FlowState) AcceptanceFactors() []float64 {
	return append([]float64(nil), state.alpha...)
}

// Passes returns number of completed loading passes
func (state *FlowState) Passes() int {
	return state.passes
}

func (state *FlowState) SegmentsNum() int {
	return len(state.sending)
}
