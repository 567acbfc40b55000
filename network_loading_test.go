package sltm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func newPathLoading(t *testing.T, net *Network, routes []*Route, options ...LoadingOption) *NetworkLoading {
	t.Helper()
	log := slogt.New(t)
	consumer, err := NewPathFlowConsumer(net, routes, log)
	require.NoError(t, err)
	loading, err := NewNetworkLoading(net, consumer, append([]LoadingOption{WithLogger(log)}, options...)...)
	require.NoError(t, err)
	return loading
}

func TestChainBasicSelective(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(80))

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.Equal(t, SCHEME_POINT_QUEUE_BASIC, result.Scheme)
	require.Equal(t, TRACKING_SELECTIVE, result.Tracking)
	// Both B and C look blocking on the unrestricted first pass, C is released once B restricts the flow
	require.Equal(t, 4, result.Iterations)
	require.Equal(t, []NodeID{fx.b}, result.PotentiallyBlockingNodes)

	state := loading.FlowState()
	require.InDelta(t, 80.0, state.Inflow(fx.ab), 1e-9)
	require.InDelta(t, 50.0, state.Inflow(fx.bc), 1e-9)
	require.InDelta(t, 0.625, state.AcceptanceFactor(fx.ab), 1e-9)
	require.InDelta(t, 1.0, state.AcceptanceFactor(fx.bc), 1e-9)
	require.InDelta(t, 50.0, state.Outflow(fx.ab), 1e-9)
	requireFeasible(t, fx.net, state)

	turns := loading.TurnFlows()
	require.InDelta(t, 80.0, turns.Sending(fx.ab, fx.bc), 1e-9)
	require.InDelta(t, 50.0, turns.Accepted(fx.ab, fx.bc), 1e-9)
	require.True(t, loading.Tracker().IsTracked(fx.b))
	require.False(t, loading.Tracker().IsTracked(fx.c))
	require.Panics(t, func() { turns.Sending(fx.bc, NoSegment) })
}

func TestChainBasicExhaustive(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(80), WithTrackingMode(TRACKING_EXHAUSTIVE))

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.Equal(t, 3, result.Iterations)

	state := loading.FlowState()
	require.InDelta(t, 0.625, state.AcceptanceFactor(fx.ab), 1e-9)
	require.InDelta(t, 1.0, state.AcceptanceFactor(fx.bc), 1e-9)
	require.InDelta(t, 50.0, state.Inflow(fx.bc), 1e-9)
	require.ElementsMatch(t, []NodeID{fx.b, fx.c}, loading.Tracker().Tracked())
	require.InDelta(t, 50.0, loading.TurnFlows().Accepted(fx.bc, NoSegment), 1e-9)
	requireFeasible(t, fx.net, state)
}

func TestChainAdvanced(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(80), WithSolutionScheme(SCHEME_POINT_QUEUE_ADVANCED))

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.Equal(t, TRACKING_EXHAUSTIVE, result.Tracking)
	require.Equal(t, 2, result.Iterations)

	state := loading.FlowState()
	require.InDelta(t, 80.0, state.Inflow(fx.ab), 1e-9)
	require.InDelta(t, 50.0, state.Inflow(fx.bc), 1e-9)
	require.InDelta(t, 0.625, state.AcceptanceFactor(fx.ab), 1e-9)
	require.InDelta(t, 1.0, state.AcceptanceFactor(fx.bc), 1e-9)
	require.InDelta(t, 50.0, loading.TurnFlows().Accepted(fx.ab, fx.bc), 1e-9)
	require.Equal(t, []NodeID{fx.b}, result.PotentiallyBlockingNodes)
	requireFeasible(t, fx.net, state)
}

func TestDiamondMerge(t *testing.T) {
	tcs := []struct {
		name       string
		options    []LoadingOption
		iterations int
	}{
		{name: "basic selective", iterations: 4},
		{name: "basic exhaustive", options: []LoadingOption{WithTrackingMode(TRACKING_EXHAUSTIVE)}, iterations: 3},
		{name: "advanced", options: []LoadingOption{WithSolutionScheme(SCHEME_POINT_QUEUE_ADVANCED)}, iterations: 2},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			fx := newDiamondFixture(t)
			loading := newPathLoading(t, fx.net, fx.routes(), tc.options...)

			result, err := loading.Run(context.Background())
			require.NoError(t, err)
			require.True(t, result.Converged)
			require.Equal(t, tc.iterations, result.Iterations)
			require.Equal(t, []NodeID{fx.d}, result.PotentiallyBlockingNodes)

			state := loading.FlowState()
			require.InDelta(t, 0.7, state.AcceptanceFactor(fx.bd), 1e-9)
			require.InDelta(t, 0.7, state.AcceptanceFactor(fx.cd), 1e-9)
			require.InDelta(t, 1.0, state.AcceptanceFactor(fx.de), 1e-9)
			require.InDelta(t, 70.0, state.Inflow(fx.de), 1e-9)

			turns := loading.TurnFlows()
			require.InDelta(t, 42.0, turns.Accepted(fx.bd, fx.de), 1e-9)
			require.InDelta(t, 28.0, turns.Accepted(fx.cd, fx.de), 1e-9)
			requireFeasible(t, fx.net, state)
		})
	}
}

func TestUnconstrainedLoading(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(30))

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.Equal(t, 1, result.Iterations)
	require.Empty(t, result.PotentiallyBlockingNodes)
	require.Zero(t, loading.Tracker().TrackedNum())

	state := loading.FlowState()
	for _, segmentID := range []SegmentID{fx.ab, fx.bc} {
		require.Equal(t, 1.0, state.AcceptanceFactor(segmentID))
		require.InDelta(t, 30.0, state.Inflow(segmentID), 1e-9)
	}

	// Second run over the same loading gives the same state
	again, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, result, again)
	require.InDelta(t, 30.0, loading.FlowState().Inflow(fx.bc), 1e-9)
}

func TestWorkersGiveSameFlows(t *testing.T) {
	fx := newDiamondFixture(t)
	routes := []*Route{}
	for i := 0; i < 10; i++ {
		for _, route := range fx.routes() {
			copied := *route
			copied.Demand /= 10
			routes = append(routes, &copied)
		}
	}
	for _, scheme := range []SolutionScheme{SCHEME_POINT_QUEUE_BASIC, SCHEME_POINT_QUEUE_ADVANCED} {
		t.Run(scheme.String(), func(t *testing.T) {
			single := newPathLoading(t, fx.net, routes, WithSolutionScheme(scheme))
			_, err := single.Run(context.Background())
			require.NoError(t, err)

			parallel := newPathLoading(t, fx.net, routes, WithSolutionScheme(scheme), WithWorkers(4))
			_, err = parallel.Run(context.Background())
			require.NoError(t, err)

			require.InDeltaSlice(t, single.FlowState().SendingFlows(), parallel.FlowState().SendingFlows(), 1e-9)
			require.InDeltaSlice(t, single.FlowState().AcceptanceFactors(), parallel.FlowState().AcceptanceFactors(), 1e-9)
		})
	}
}

func TestEmptyRouteIsSkipped(t *testing.T) {
	fx := newChainFixture(t)
	handler := &countingHandler{}
	log := slog.New(handler)
	routes := append(fx.routes(30), &Route{Demand: 10, Origin: fx.a, Destination: fx.c})

	consumer, err := NewPathFlowConsumer(fx.net, routes, log)
	require.NoError(t, err)
	require.Equal(t, 1, consumer.Units())
	require.Equal(t, 1, consumer.Skipped())

	loading, err := NewNetworkLoading(fx.net, consumer, WithLogger(log))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = loading.Run(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, handler.Warnings())
	require.InDelta(t, 30.0, loading.FlowState().Inflow(fx.ab), 1e-9)
}

func TestNoDemand(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(0))

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.Equal(t, 0.0, loading.FlowState().Inflow(fx.ab))
}

func TestMaxIterationsReached(t *testing.T) {
	fx := newChainFixture(t)
	handler := &countingHandler{}
	consumer, err := NewPathFlowConsumer(fx.net, fx.routes(80), nil)
	require.NoError(t, err)
	loading, err := NewNetworkLoading(fx.net, consumer, WithLogger(slog.New(handler)), WithMaxIterations(1))
	require.NoError(t, err)

	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.False(t, result.Converged)
	require.Equal(t, 1, result.Iterations)
	require.Equal(t, 1, handler.Warnings())
}

func TestRunCancelled(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(80))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loading.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, IsConfigurationError(err))
}

func TestLoadingConfigurationErrors(t *testing.T) {
	tcs := []struct {
		name    string
		options []LoadingOption
		target  error
	}{
		{
			name:    "advanced with selective tracking",
			options: []LoadingOption{WithSolutionScheme(SCHEME_POINT_QUEUE_ADVANCED), WithTrackingMode(TRACKING_SELECTIVE)},
			target:  ErrUnsupportedScheme,
		},
		{
			name:    "zero max iterations",
			options: []LoadingOption{WithMaxIterations(0)},
			target:  ErrInvalidOption,
		},
		{
			name:    "negative tolerance",
			options: []LoadingOption{WithAcceptanceTolerance(-1)},
			target:  ErrInvalidOption,
		},
		{
			name:    "no workers",
			options: []LoadingOption{WithWorkers(0)},
			target:  ErrInvalidOption,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			fx := newChainFixture(t)
			consumer, err := NewPathFlowConsumer(fx.net, fx.routes(80), slogt.New(t))
			require.NoError(t, err)
			_, err = NewNetworkLoading(fx.net, consumer, tc.options...)
			require.ErrorIs(t, err, tc.target)
			require.True(t, IsConfigurationError(err))
		})
	}
}

func TestBushLoadingMatchesPaths(t *testing.T) {
	fx := newDiamondFixture(t)
	bush := NewBush(fx.net, fx.a)
	for _, route := range fx.routes() {
		require.NoError(t, bush.AddRoute(route))
	}
	consumer, err := NewBushFlowConsumer([]*Bush{bush}, slogt.New(t))
	require.NoError(t, err)
	for _, scheme := range []SolutionScheme{SCHEME_POINT_QUEUE_BASIC, SCHEME_POINT_QUEUE_ADVANCED} {
		t.Run(scheme.String(), func(t *testing.T) {
			bushLoading, err := NewNetworkLoading(fx.net, consumer, WithSolutionScheme(scheme), WithLogger(slogt.New(t)))
			require.NoError(t, err)
			bushResult, err := bushLoading.Run(context.Background())
			require.NoError(t, err)
			require.True(t, bushResult.Converged)

			pathLoading := newPathLoading(t, fx.net, fx.routes(), WithSolutionScheme(scheme))
			_, err = pathLoading.Run(context.Background())
			require.NoError(t, err)

			require.InDeltaSlice(t, pathLoading.FlowState().SendingFlows(), bushLoading.FlowState().SendingFlows(), 1e-9)
			require.InDeltaSlice(t, pathLoading.FlowState().AcceptanceFactors(), bushLoading.FlowState().AcceptanceFactors(), 1e-9)
			require.InDelta(t, 42.0, bushLoading.TurnFlows().Accepted(fx.bd, fx.de), 1e-9)
			requireFeasible(t, fx.net, bushLoading.FlowState())
		})
	}
}

func TestOriginOverDemand(t *testing.T) {
	tcs := []struct {
		name       string
		options    []LoadingOption
		iterations int
	}{
		{name: "basic selective", iterations: 4},
		{name: "basic exhaustive", options: []LoadingOption{WithTrackingMode(TRACKING_EXHAUSTIVE)}, iterations: 3},
		{name: "advanced", options: []LoadingOption{WithSolutionScheme(SCHEME_POINT_QUEUE_ADVANCED)}, iterations: 2},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			fx := newChainFixture(t)
			// Demand exceeds capacity of the very first segment
			loading := newPathLoading(t, fx.net, fx.routes(150), tc.options...)

			result, err := loading.Run(context.Background())
			require.NoError(t, err)
			require.True(t, result.Converged)
			require.Equal(t, tc.iterations, result.Iterations)
			require.Equal(t, []NodeID{fx.b}, result.PotentiallyBlockingNodes)

			state := loading.FlowState()
			require.InDelta(t, 150.0, state.Inflow(fx.ab), 1e-9)
			require.InDelta(t, 1.0/3.0, state.AcceptanceFactor(fx.ab), 1e-9)
			require.InDelta(t, 1.0, state.AcceptanceFactor(fx.bc), 1e-9)
			require.InDelta(t, 50.0, state.Inflow(fx.bc), 1e-9)
			requireFeasible(t, fx.net, state)
		})
	}
}

// newBottlenecksChain is A -> B -> C -> D -> E where every next segment has lower capacity
func newBottlenecksChain(t *testing.T) (*Network, []*Route) {
	t.Helper()
	net := NewNetwork()
	nodes := make([]NodeID, 5)
	for i := range nodes {
		nodes[i] = net.AddNode()
	}
	segments := make([]SegmentID, 0, 4)
	for i, capacity := range []float64{100, 80, 60, 50} {
		id, err := net.AddSegment(nodes[i], nodes[i+1], capacity)
		require.NoError(t, err)
		segments = append(segments, id)
	}
	return net, []*Route{{Segments: segments, Demand: 90, Origin: nodes[0], Destination: nodes[4]}}
}

func TestAlphaChangeDecreases(t *testing.T) {
	changes := []float64{}
	converged := false
	for passes := 1; passes <= 10 && !converged; passes++ {
		net, routes := newBottlenecksChain(t)
		loading := newPathLoading(t, net, routes, WithTrackingMode(TRACKING_EXHAUSTIVE), WithMaxIterations(passes))
		result, err := loading.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, passes, result.Iterations)
		changes = append(changes, result.MaxAlphaChange)
		converged = result.Converged
		requireFeasible(t, net, loading.FlowState())
	}
	require.True(t, converged)
	// Every bottleneck is released only after the upstream one has restricted the flow
	require.Len(t, changes, 5)
	for i := 1; i < len(changes); i++ {
		require.LessOrEqual(t, changes[i], changes[i-1]+1e-9, "pass %d", i+1)
	}
	require.Less(t, changes[len(changes)-1], DefaultAcceptanceTolerance)
}

func TestNodeModelFallbacksAreCounted(t *testing.T) {
	fx := newChainFixture(t)
	loading := newPathLoading(t, fx.net, fx.routes(80))
	problems := []nodeProblem{{node: fx.net.nodes[fx.b]}}
	results := []NodeModelResult{{Alphas: []float64{0.5}, Constrained: true, Fallback: true}}

	change := loading.commitAlphas(problems, results)
	require.InDelta(t, 0.5, change, 1e-12)
	require.Equal(t, 1, loading.fallbacks)
	require.True(t, loading.constrained.Test(uint(fx.b)))
	require.InDelta(t, 0.5, loading.FlowState().AcceptanceFactor(fx.ab), 1e-12)

	// Counter belongs to a single run
	result, err := loading.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.NodeModelFallbacks)
}
