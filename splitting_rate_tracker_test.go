package sltm

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func TestSplittingRateTracker(t *testing.T) {
	tracker := NewSplittingRateTracker(5, TRACKING_SELECTIVE)
	require.Equal(t, TRACKING_SELECTIVE, tracker.Mode())
	require.Zero(t, tracker.TrackedNum())

	tracker.Activate(3)
	tracker.Activate(1)
	tracker.Activate(3)
	require.True(t, tracker.IsTracked(1))
	require.True(t, tracker.IsTracked(3))
	require.False(t, tracker.IsTracked(0))
	require.False(t, tracker.IsTracked(NodeID(-1)))
	require.Equal(t, 2, tracker.TrackedNum())
	require.Equal(t, []NodeID{1, 3}, tracker.Tracked())

	set := bitset.New(5)
	set.Set(4)
	tracker.activateSet(set)
	require.Equal(t, []NodeID{1, 3, 4}, tracker.Tracked())

	tracker.Reset()
	require.Zero(t, tracker.TrackedNum())
	require.Panics(t, func() { tracker.Activate(5) })
}

func TestActivateUsedNodes(t *testing.T) {
	fx := newDiamondFixture(t)
	consumer, err := NewPathFlowConsumer(fx.net, fx.routes(), slogt.New(t))
	require.NoError(t, err)

	tracker := NewSplittingRateTracker(fx.net.NodesNum(), TRACKING_EXHAUSTIVE)
	tracker.ActivateUsedNodes(consumer)
	// Origin has no entry on these routes
	require.Equal(t, []NodeID{fx.b, fx.c, fx.d, fx.e}, tracker.Tracked())
}
