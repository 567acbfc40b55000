package sltm

import (
	"fmt"
	"sort"
)

// TurnFlows is read-only view on turn flows at tracked nodes after the latest loading pass
type TurnFlows struct {
	network *Network
	tracker *SplittingRateTracker
	state   *FlowState
	sending map[TurnKey]float64
}

func (tf *TurnFlows) mustBeTracked(entry SegmentID) {
	if !tf.network.hasSegment(entry) {
		panic(fmt.Sprintf("turn flow requested for unknown segment %d", entry))
	}
	node := tf.network.segments[entry].targetNodeID
	if !tf.tracker.IsTracked(node) {
		panic(fmt.Sprintf("turn flow requested at node %d which is not tracked", node))
	}
}

// Sending returns turn sending flow entry -> exit (NoSegment for terminating flow). Panics when node between them is not tracked
func (tf *TurnFlows) Sending(entry, exit SegmentID) float64 {
	tf.mustBeTracked(entry)
	return tf.sending[NewTurnKey(entry, exit)]
}

// Accepted returns turn flow entry -> exit which has been accepted by the node model. Panics when node between them is not tracked
func (tf *TurnFlows) Accepted(entry, exit SegmentID) float64 {
	tf.mustBeTracked(entry)
	return tf.sending[NewTurnKey(entry, exit)] * tf.state.alpha[entry]
}

// Len returns number of recorded turns
func (tf *TurnFlows) Len() int {
	return len(tf.sending)
}

// Range iterates turns in ascending key order until fn returns false
func (tf *TurnFlows) Range(fn func(key TurnKey, sending, accepted float64) bool) {
	keys := make([]TurnKey, 0, len(tf.sending))
	for key := range tf.sending {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		sending := tf.sending[key]
		if !fn(key, sending, sending*tf.state.alpha[key.Entry()]) {
			return
		}
	}
}
