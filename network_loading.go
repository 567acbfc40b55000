package sltm

import (
	"context"
	"log/slog"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// NetworkLoading performs static network loading of fixed demand (sLTM with point queues).
// Every pass propagates demand with current flow acceptance factors, then solves node model
// at tracked nodes and updates those factors. Passes are repeated until factors converge
type NetworkLoading struct {
	network  *Network
	consumer FlowConsumer
	log      *slog.Logger

	scheme               SolutionScheme
	trackingMode         TrackingMode
	acceptanceTolerance  float64
	sendingFlowTolerance float64
	capacityTolerance    float64
	maxIterations        int
	maxLocalIterations   int
	workers              int

	state     *FlowState
	tracker   *SplittingRateTracker
	nodeModel *NodeModel
	acc       *FlowAccumulator
	turnFlows *TurnFlows

	// Nodes which have restricted (or would restrict) flow on the latest pass
	potentiallyBlocking *bitset.BitSet
	// Tracked nodes constrained by the node model on the latest pass
	constrained *bitset.BitSet
	fallbacks   int
}

// LoadingResult summarizes Run()
type LoadingResult struct {
	Scheme                   SolutionScheme
	Tracking                 TrackingMode
	Iterations               int
	MaxAlphaChange           float64
	PotentiallyBlockingNodes []NodeID
	// Number of node model evaluations which required proportional fallback
	NodeModelFallbacks int
	Converged          bool
}

// NewNetworkLoading validates network and options and prepares loading. Returned errors are configuration errors
func NewNetworkLoading(net *Network, consumer FlowConsumer, options ...LoadingOption) (*NetworkLoading, error) {
	loading := &NetworkLoading{
		network:              net,
		consumer:             consumer,
		scheme:               SCHEME_POINT_QUEUE_BASIC,
		acceptanceTolerance:  DefaultAcceptanceTolerance,
		sendingFlowTolerance: DefaultSendingFlowTolerance,
		capacityTolerance:    DefaultCapacityTolerance,
		maxIterations:        DefaultMaxIterations,
		maxLocalIterations:   DefaultMaxLocalIterations,
		workers:              1,
	}
	for _, option := range options {
		option(loading)
	}
	if loading.log == nil {
		loading.log = slog.Default()
	}
	if consumer == nil {
		return nil, errors.Wrap(ErrInvalidOption, "flow consumer is nil")
	}
	if err := net.Validate(); err != nil {
		return nil, errors.Wrap(err, "Can't prepare network loading")
	}
	if loading.trackingMode == TRACKING_UNDEFINED {
		loading.trackingMode = loading.scheme.DefaultTrackingMode()
	}
	if err := ValidateSchemeTracking(loading.scheme, loading.trackingMode); err != nil {
		return nil, err
	}
	if err := loading.validateOptions(); err != nil {
		return nil, err
	}

	loading.state = NewFlowState(net.SegmentsNum())
	loading.tracker = NewSplittingRateTracker(net.NodesNum(), loading.trackingMode)
	loading.nodeModel = NewNodeModel(loading.capacityTolerance, loading.log)
	loading.acc = newFlowAccumulator(net.SegmentsNum(), loading.state, loading.tracker, true)
	loading.acc.sending = loading.state.sending
	loading.turnFlows = &TurnFlows{network: net, tracker: loading.tracker, state: loading.state, sending: loading.acc.turns}
	loading.potentiallyBlocking = bitset.New(uint(net.NodesNum()))
	loading.constrained = bitset.New(uint(net.NodesNum()))
	return loading, nil
}

func (loading *NetworkLoading) validateOptions() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"acceptance tolerance", loading.acceptanceTolerance},
		{"sending flow tolerance", loading.sendingFlowTolerance},
	}
	for _, option := range positive {
		if !(option.value > 0) || math.IsInf(option.value, 0) {
			return errors.Wrapf(ErrInvalidOption, "%s must be finite and positive, got %v", option.name, option.value)
		}
	}
	if !(loading.capacityTolerance >= 0) || math.IsInf(loading.capacityTolerance, 0) {
		return errors.Wrapf(ErrInvalidOption, "capacity tolerance must be finite and non-negative, got %v", loading.capacityTolerance)
	}
	if loading.maxIterations < 1 {
		return errors.Wrapf(ErrInvalidOption, "max iterations must be positive, got %d", loading.maxIterations)
	}
	if loading.maxLocalIterations < 1 {
		return errors.Wrapf(ErrInvalidOption, "max local iterations must be positive, got %d", loading.maxLocalIterations)
	}
	if loading.workers < 1 {
		return errors.Wrapf(ErrInvalidOption, "workers number must be positive, got %d", loading.workers)
	}
	return nil
}

// Run loads the demand. Reaching max iterations is not an error: result has Converged = false.
// Context is checked between passes only
func (loading *NetworkLoading) Run(ctx context.Context) (LoadingResult, error) {
	result := LoadingResult{
		Scheme:   loading.scheme,
		Tracking: loading.trackingMode,
	}
	loading.state.Reset(loading.network)
	loading.acc.sending = loading.state.sending
	loading.potentiallyBlocking.ClearAll()
	loading.constrained.ClearAll()
	loading.fallbacks = 0

	prevAlpha := loading.state.AcceptanceFactors()
	for pass := 1; pass <= loading.maxIterations; pass++ {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "Network loading has been cancelled before pass %d", pass)
		}
		loading.prepareTracking()
		var err error
		if loading.scheme.UpdatesSendingFlowsLocally() {
			err = loading.advancedPass()
		} else {
			err = loading.basicPass()
		}
		if err != nil {
			return result, errors.Wrapf(err, "Network loading has failed on pass %d", pass)
		}
		newlyBlocking := loading.updatePotentiallyBlocking()
		loading.state.passes++

		change := floats.Distance(prevAlpha, loading.state.alpha, math.Inf(1))
		copy(prevAlpha, loading.state.alpha)
		result.Iterations = pass
		result.MaxAlphaChange = change
		loading.log.Debug("Network loading pass", "pass", pass, "max_alpha_change", change, "tracked", loading.tracker.TrackedNum(), "newly_blocking", newlyBlocking)
		if change < loading.acceptanceTolerance && !newlyBlocking {
			result.Converged = true
			break
		}
	}
	result.PotentiallyBlockingNodes = loading.PotentiallyBlockingNodes()
	result.NodeModelFallbacks = loading.fallbacks
	if !result.Converged {
		loading.log.Warn("Network loading has not converged", "iterations", result.Iterations, "max_alpha_change", result.MaxAlphaChange, "tolerance", loading.acceptanceTolerance)
	}
	return result, nil
}

// prepareTracking rebuilds tracker for the next pass
func (loading *NetworkLoading) prepareTracking() {
	loading.tracker.Reset()
	switch loading.trackingMode {
	case TRACKING_SELECTIVE:
		loading.tracker.activateSet(loading.potentiallyBlocking)
	case TRACKING_EXHAUSTIVE:
		loading.tracker.ActivateUsedNodes(loading.consumer)
	}
}

// propagate traverses every demand unit of consumer. Several workers fill their own accumulators which are merged afterwards
func (loading *NetworkLoading) propagate(consumer FlowConsumer, updateSending bool) error {
	loading.acc.reset(updateSending)
	loading.turnFlows.sending = loading.acc.turns
	units := consumer.Units()
	workers := loading.workers
	if workers > units {
		workers = units
	}
	if workers <= 1 {
		for i := 0; i < units; i++ {
			consumer.ConsumeUnit(i, loading.acc)
		}
		return nil
	}
	locals := make([]*FlowAccumulator, workers)
	chunk := (units + workers - 1) / workers
	var group errgroup.Group
	for w := 0; w < workers; w++ {
		local := newFlowAccumulator(loading.network.SegmentsNum(), loading.state, loading.tracker, updateSending)
		locals[w] = local
		from := w * chunk
		to := from + chunk
		if to > units {
			to = units
		}
		group.Go(func() error {
			for i := from; i < to; i++ {
				consumer.ConsumeUnit(i, local)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "Can't propagate flows")
	}
	for _, local := range locals {
		loading.acc.merge(local)
	}
	return nil
}

// nodeProblem is node model input of a tracked node together with its adjacency
type nodeProblem struct {
	input NodeModelInput
	node  *NetworkNode
}

// nodeProblemFromTurns builds node model input from turn sending flows recorded during traversal
func (loading *NetworkLoading) nodeProblemFromTurns(nodeID NodeID) nodeProblem {
	node := loading.network.nodes[nodeID]
	problem := loading.newNodeProblem(node)
	exitsNum := len(node.outcomingSegments)
	for a, entry := range node.incomingSegments {
		for b, exit := range node.outcomingSegments {
			problem.input.TurnSendingFlows[a*exitsNum+b] = loading.acc.turns[NewTurnKey(entry, exit)]
		}
		problem.input.SinkFlows[a] = loading.acc.turns[NewTurnKey(entry, NoSegment)]
	}
	return problem
}

func (loading *NetworkLoading) newNodeProblem(node *NetworkNode) nodeProblem {
	entriesNum := len(node.incomingSegments)
	exitsNum := len(node.outcomingSegments)
	input := NodeModelInput{
		Node:               node.ID,
		EntryCapacities:    make([]float64, entriesNum),
		ExitReceivingFlows: make([]float64, exitsNum),
		TurnSendingFlows:   make([]float64, entriesNum*exitsNum),
		SinkFlows:          make([]float64, entriesNum),
	}
	for a, entry := range node.incomingSegments {
		input.EntryCapacities[a] = loading.network.segments[entry].capacity
	}
	for b, exit := range node.outcomingSegments {
		input.ExitReceivingFlows[b] = loading.state.receiving[exit]
	}
	return nodeProblem{input: input, node: node}
}

// solveNodes evaluates node model for every problem. Results are committed by the caller after all nodes are solved
func (loading *NetworkLoading) solveNodes(problems []nodeProblem) ([]NodeModelResult, error) {
	results := make([]NodeModelResult, len(problems))
	workers := loading.workers
	if workers > len(problems) {
		workers = len(problems)
	}
	if workers <= 1 {
		for i := range problems {
			results[i] = loading.nodeModel.Solve(problems[i].input)
		}
		return results, nil
	}
	chunk := (len(problems) + workers - 1) / workers
	var group errgroup.Group
	for w := 0; w < workers; w++ {
		from := w * chunk
		to := from + chunk
		if to > len(problems) {
			to = len(problems)
		}
		group.Go(func() error {
			for i := from; i < to; i++ {
				results[i] = loading.nodeModel.Solve(problems[i].input)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(err, "Can't solve node model")
	}
	return results, nil
}

// commitAlphas stores entry factors of solved nodes and returns max absolute change
func (loading *NetworkLoading) commitAlphas(problems []nodeProblem, results []NodeModelResult) float64 {
	maxChange := 0.0
	loading.constrained.ClearAll()
	for i, problem := range problems {
		result := &results[i]
		for a, entry := range problem.node.incomingSegments {
			change := math.Abs(result.Alphas[a] - loading.state.alpha[entry])
			if change > maxChange {
				maxChange = change
			}
			loading.state.alpha[entry] = result.Alphas[a]
		}
		if result.Constrained {
			loading.constrained.Set(uint(problem.node.ID))
		}
		if result.Fallback {
			loading.fallbacks++
		}
	}
	return maxChange
}

// basicPass: traversal maintains sending flows, node model runs once per tracked node
func (loading *NetworkLoading) basicPass() error {
	loading.state.resetSendingFlows()
	if err := loading.propagate(loading.consumer, loading.scheme.UpdatesSendingFlowsOnTraversal()); err != nil {
		return err
	}

	tracked := loading.tracker.Tracked()
	problems := make([]nodeProblem, len(tracked))
	for i, nodeID := range tracked {
		problems[i] = loading.nodeProblemFromTurns(nodeID)
	}
	results, err := loading.solveNodes(problems)
	if err != nil {
		return err
	}
	loading.commitAlphas(problems, results)
	for i, problem := range problems {
		if !results[i].Constrained {
			continue
		}
		for b, exit := range problem.node.outcomingSegments {
			loading.state.sending[exit] = loading.acc.injections[exit] + results[i].AcceptedExitFlows[b]
		}
	}
	return nil
}

// splittingRates stores turn proportions of a tracked node derived from traversal
type splittingRates struct {
	// row-major entries x exits
	turns []float64
	sink  []float64
}

func (loading *NetworkLoading) splittingRatesOf(problem *nodeProblem) splittingRates {
	entriesNum := len(problem.node.incomingSegments)
	exitsNum := len(problem.node.outcomingSegments)
	rates := splittingRates{
		turns: make([]float64, entriesNum*exitsNum),
		sink:  make([]float64, entriesNum),
	}
	for a := 0; a < entriesNum; a++ {
		row := problem.input.TurnSendingFlows[a*exitsNum : (a+1)*exitsNum]
		total := floats.Sum(row) + problem.input.SinkFlows[a]
		if total <= flowEpsilon {
			// Nothing observed: whatever arrives terminates here
			rates.sink[a] = 1.0
			continue
		}
		for b, flow := range row {
			rates.turns[a*exitsNum+b] = flow / total
		}
		rates.sink[a] = problem.input.SinkFlows[a] / total
	}
	return rates
}

// advancedPass: traversal provides turn flows and injections only, then sending flows are propagated node to node
func (loading *NetworkLoading) advancedPass() error {
	if err := loading.propagate(NewTurnUpdateConsumer(loading.consumer), loading.scheme.UpdatesSendingFlowsOnTraversal()); err != nil {
		return err
	}

	tracked := loading.tracker.Tracked()
	problems := make([]nodeProblem, len(tracked))
	rates := make([]splittingRates, len(tracked))
	// Sending flows observed by traversal (attenuated by factors of the previous pass) are the initial guess
	sending := make([]float64, len(loading.state.sending))
	copy(sending, loading.acc.injections)
	for i, nodeID := range tracked {
		problems[i] = loading.nodeProblemFromTurns(nodeID)
		rates[i] = loading.splittingRatesOf(&problems[i])
		exitsNum := len(problems[i].node.outcomingSegments)
		for a, entry := range problems[i].node.incomingSegments {
			row := problems[i].input.TurnSendingFlows[a*exitsNum : (a+1)*exitsNum]
			sending[entry] = floats.Sum(row) + problems[i].input.SinkFlows[a]
		}
	}
	copy(loading.state.sending, sending)

	for sweep := 1; sweep <= loading.maxLocalIterations; sweep++ {
		for i := range problems {
			loading.applySplittingRates(&problems[i], &rates[i])
		}
		results, err := loading.solveNodes(problems)
		if err != nil {
			return err
		}
		alphaChange := loading.commitAlphas(problems, results)

		copy(sending, loading.acc.injections)
		for i, problem := range problems {
			for b, exit := range problem.node.outcomingSegments {
				sending[exit] += results[i].AcceptedExitFlows[b]
			}
		}
		sendingChange := floats.Distance(sending, loading.state.sending, math.Inf(1))
		copy(loading.state.sending, sending)
		if sendingChange < loading.sendingFlowTolerance && alphaChange < loading.acceptanceTolerance {
			break
		}
		if sweep == loading.maxLocalIterations {
			loading.log.Debug("Local sending flow updates reached max iterations", "sweeps", sweep, "sending_change", sendingChange, "alpha_change", alphaChange)
		}
	}

	// Turn flows consistent with local sending flows
	for i := range problems {
		loading.applySplittingRates(&problems[i], &rates[i])
		problem := &problems[i]
		exitsNum := len(problem.node.outcomingSegments)
		for a, entry := range problem.node.incomingSegments {
			for b, exit := range problem.node.outcomingSegments {
				loading.setTurnFlow(entry, exit, problem.input.TurnSendingFlows[a*exitsNum+b])
			}
			loading.setTurnFlow(entry, NoSegment, problem.input.SinkFlows[a])
		}
	}
	return nil
}

// applySplittingRates turns current sending flows of entries into turn sending flows
func (loading *NetworkLoading) applySplittingRates(problem *nodeProblem, rates *splittingRates) {
	exitsNum := len(problem.node.outcomingSegments)
	for a, entry := range problem.node.incomingSegments {
		flow := loading.state.sending[entry]
		for b := 0; b < exitsNum; b++ {
			problem.input.TurnSendingFlows[a*exitsNum+b] = flow * rates.turns[a*exitsNum+b]
		}
		problem.input.SinkFlows[a] = flow * rates.sink[a]
	}
}

func (loading *NetworkLoading) setTurnFlow(entry, exit SegmentID, flow float64) {
	key := NewTurnKey(entry, exit)
	if flow <= 0 {
		delete(loading.acc.turns, key)
		return
	}
	loading.acc.turns[key] = flow
}

// updatePotentiallyBlocking rebuilds potentially blocking set. Returns true if some node has become blocking
// while not being tracked on this pass
func (loading *NetworkLoading) updatePotentiallyBlocking() bool {
	newly := false
	loading.potentiallyBlocking.ClearAll()
	tolerance := 1.0 + loading.capacityTolerance
	for _, node := range loading.network.nodes {
		// Pure origin restricts nothing: its over-demand is capped by entry capacity at downstream node
		if len(node.incomingSegments) == 0 {
			continue
		}
		blocking := false
		if loading.tracker.IsTracked(node.ID) {
			blocking = loading.constrained.Test(uint(node.ID))
		} else {
			for _, entry := range node.incomingSegments {
				if loading.state.sending[entry] > loading.network.segments[entry].capacity*tolerance {
					blocking = true
					break
				}
			}
			if !blocking {
				for _, exit := range node.outcomingSegments {
					if loading.state.sending[exit] > loading.state.receiving[exit]*tolerance {
						blocking = true
						break
					}
				}
			}
			newly = newly || blocking
		}
		if blocking {
			loading.potentiallyBlocking.Set(uint(node.ID))
		}
	}
	return newly
}

// FlowState returns state of the latest pass
func (loading *NetworkLoading) FlowState() *FlowState {
	return loading.state
}

// TurnFlows returns turn flows at tracked nodes of the latest pass
func (loading *NetworkLoading) TurnFlows() *TurnFlows {
	return loading.turnFlows
}

// Tracker returns splitting rate tracker of the latest pass
func (loading *NetworkLoading) Tracker() *SplittingRateTracker {
	return loading.tracker
}

// PotentiallyBlockingNodes returns nodes of potentially blocking set in ascending order
func (loading *NetworkLoading) PotentiallyBlockingNodes() []NodeID {
	nodes := make([]NodeID, 0, loading.potentiallyBlocking.Count())
	for i, ok := loading.potentiallyBlocking.NextSet(0); ok; i, ok = loading.potentiallyBlocking.NextSet(i + 1) {
		nodes = append(nodes, NodeID(i))
	}
	return nodes
}

// Scheme returns active solution scheme
func (loading *NetworkLoading) Scheme() SolutionScheme {
	return loading.scheme
}

// TrackingMode returns active tracking mode
func (loading *NetworkLoading) TrackingMode() TrackingMode {
	return loading.trackingMode
}
