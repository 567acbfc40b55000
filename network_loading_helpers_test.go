package sltm

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingHandler counts records per level
type countingHandler struct {
	mu       sync.Mutex
	warnings int
	messages []string
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *countingHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level != slog.LevelWarn {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings++
	h.messages = append(h.messages, record.Message)
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *countingHandler) WithGroup(string) slog.Handler { return h }

func (h *countingHandler) Warnings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.warnings
}

// chainFixture is A -> B -> C. B restricts AB flow since BC has lower capacity
type chainFixture struct {
	net     *Network
	a, b, c NodeID
	ab, bc  SegmentID
}

func newChainFixture(t *testing.T) chainFixture {
	t.Helper()
	fx := chainFixture{net: NewNetwork()}
	fx.a = fx.net.AddNode(WithNodeName("A"))
	fx.b = fx.net.AddNode(WithNodeName("B"))
	fx.c = fx.net.AddNode(WithNodeName("C"))
	var err error
	fx.ab, err = fx.net.AddSegment(fx.a, fx.b, 100)
	require.NoError(t, err)
	fx.bc, err = fx.net.AddSegment(fx.b, fx.c, 50)
	require.NoError(t, err)
	return fx
}

func (fx chainFixture) routes(demand float64) []*Route {
	return []*Route{
		{Segments: []SegmentID{fx.ab, fx.bc}, Demand: demand, Origin: fx.a, Destination: fx.c},
	}
}

// diamondFixture is A -> {B, C} -> D -> E with bottleneck DE
type diamondFixture struct {
	net                *Network
	a, b, c, d, e      NodeID
	ab, ac, bd, cd, de SegmentID
}

func newDiamondFixture(t *testing.T) diamondFixture {
	t.Helper()
	fx := diamondFixture{net: NewNetwork()}
	fx.a = fx.net.AddNode()
	fx.b = fx.net.AddNode()
	fx.c = fx.net.AddNode()
	fx.d = fx.net.AddNode()
	fx.e = fx.net.AddNode()
	add := func(source, target NodeID, capacity float64) SegmentID {
		id, err := fx.net.AddSegment(source, target, capacity)
		require.NoError(t, err)
		return id
	}
	fx.ab = add(fx.a, fx.b, 100)
	fx.ac = add(fx.a, fx.c, 100)
	fx.bd = add(fx.b, fx.d, 100)
	fx.cd = add(fx.c, fx.d, 100)
	fx.de = add(fx.d, fx.e, 70)
	return fx
}

func (fx diamondFixture) routes() []*Route {
	return []*Route{
		{Segments: []SegmentID{fx.ab, fx.bd, fx.de}, Demand: 60, Origin: fx.a, Destination: fx.e},
		{Segments: []SegmentID{fx.ac, fx.cd, fx.de}, Demand: 40, Origin: fx.a, Destination: fx.e},
	}
}

// requireFeasible checks that no segment accepts more than its capacity and node flows are conserved
func requireFeasible(t *testing.T, net *Network, state *FlowState) {
	t.Helper()
	const delta = 1e-6
	for _, segment := range net.segments {
		require.LessOrEqual(t, state.Outflow(segment.ID), segment.capacity+delta, "segment %d", segment.ID)
	}
	for _, node := range net.nodes {
		if len(node.incomingSegments) == 0 || len(node.outcomingSegments) == 0 {
			continue
		}
		inflow := 0.0
		for _, exit := range node.outcomingSegments {
			require.LessOrEqual(t, state.Inflow(exit), state.ReceivingFlow(exit)+delta, "exit %d", exit)
			inflow += state.Inflow(exit)
		}
		outflow := 0.0
		for _, entry := range node.incomingSegments {
			outflow += state.Outflow(entry)
		}
		require.InDelta(t, outflow, inflow, delta, "node %d", node.ID)
	}
}
