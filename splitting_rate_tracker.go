package sltm

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// SplittingRateTracker decides per node whether its turn flows must be recorded during current pass.
// State is rebuilt every pass: Reset() then Activate() before any consumer accumulates turn flows
type SplittingRateTracker struct {
	tracked  *bitset.BitSet
	nodesNum int
	mode     TrackingMode
}

// NewSplittingRateTracker creates tracker for the network of nodesNum nodes
func NewSplittingRateTracker(nodesNum int, mode TrackingMode) *SplittingRateTracker {
	return &SplittingRateTracker{
		tracked:  bitset.New(uint(nodesNum)),
		nodesNum: nodesNum,
		mode:     mode,
	}
}

// Activate marks node as tracked for this pass
func (tracker *SplittingRateTracker) Activate(node NodeID) {
	if node < 0 || int(node) >= tracker.nodesNum {
		panic(fmt.Sprintf("can't activate tracking for node %d: network has %d nodes", node, tracker.nodesNum))
	}
	tracker.tracked.Set(uint(node))
}

// IsTracked reports whether node is tracked for this pass
func (tracker *SplittingRateTracker) IsTracked(node NodeID) bool {
	if node < 0 {
		return false
	}
	return tracker.tracked.Test(uint(node))
}

// Reset clears tracking of every node
func (tracker *SplittingRateTracker) Reset() {
	tracker.tracked.ClearAll()
}

// Mode returns populating strategy
func (tracker *SplittingRateTracker) Mode() TrackingMode {
	return tracker.mode
}

// TrackedNum returns number of tracked nodes
func (tracker *SplittingRateTracker) TrackedNum() int {
	return int(tracker.tracked.Count())
}

// Tracked returns tracked nodes in ascending order
func (tracker *SplittingRateTracker) Tracked() []NodeID {
	nodes := make([]NodeID, 0, tracker.tracked.Count())
	for i, ok := tracker.tracked.NextSet(0); ok; i, ok = tracker.tracked.NextSet(i + 1) {
		nodes = append(nodes, NodeID(i))
	}
	return nodes
}

// activateSet marks every node in given set (selective population)
func (tracker *SplittingRateTracker) activateSet(nodes *bitset.BitSet) {
	tracker.tracked.InPlaceUnion(nodes)
}

// ActivateUsedNodes marks every node passed by positive demand of the consumer.
// Origin of the demand is skipped since flow has no entry segment there (unless origin is passed further downstream)
func (tracker *SplittingRateTracker) ActivateUsedNodes(consumer FlowConsumer) {
	for i := 0; i < consumer.Units(); i++ {
		consumer.VisitUnitNodes(i, tracker.Activate)
	}
}
