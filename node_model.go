package sltm

import (
	"log/slog"
	"math"
)

// Flows below this value are considered to be zero
const flowEpsilon = 1e-12

// NodeModelInput is the flow distribution problem of single node.
// Turn sending flows are stored row-major: TurnSendingFlows[entryIdx*len(ExitReceivingFlows)+exitIdx]
type NodeModelInput struct {
	EntryCapacities    []float64
	ExitReceivingFlows []float64
	TurnSendingFlows   []float64
	// Flow terminating at the node per entry. Sink has unbounded receiving flow. Could be nil
	SinkFlows []float64
	// Used for logging only
	Node NodeID
}

func (input *NodeModelInput) entriesNum() int {
	return len(input.EntryCapacities)
}

func (input *NodeModelInput) exitsNum() int {
	return len(input.ExitReceivingFlows)
}

func (input *NodeModelInput) sinkFlow(entryIdx int) float64 {
	if input.SinkFlows == nil {
		return 0
	}
	return input.SinkFlows[entryIdx]
}

// NodeModelResult is solution of NodeModelInput
type NodeModelResult struct {
	// Flow acceptance factor per entry
	Alphas []float64
	// Accepted turn flows, same layout as NodeModelInput.TurnSendingFlows
	AcceptedTurnFlows []float64
	AcceptedSinkFlows []float64
	// Accepted inflow per exit: sum of accepted turn flows towards the exit
	AcceptedExitFlows []float64
	// At least one entry has been restricted
	Constrained bool
	// Constrained branch has not satisfied capacities and proportional scaling has been applied
	Fallback bool
}

// NodeModel distributes entry sending flows over exits respecting entry capacities and exit receiving flows.
// Turn proportions of every entry are kept fixed; only total outflow of an entry is scaled by its alpha.
// Competing entries are restricted proportionally to their demand
type NodeModel struct {
	log               *slog.Logger
	capacityTolerance float64
}

// NewNodeModel returns node model. Capacity tolerance is relative
func NewNodeModel(capacityTolerance float64, log *slog.Logger) *NodeModel {
	if log == nil {
		log = slog.Default()
	}
	return &NodeModel{
		log:               log,
		capacityTolerance: capacityTolerance,
	}
}

// Solve evaluates flow acceptance factors and accepted flows of the node
func (nm *NodeModel) Solve(input NodeModelInput) NodeModelResult {
	entriesNum := input.entriesNum()
	exitsNum := input.exitsNum()
	result := NodeModelResult{
		Alphas:            make([]float64, entriesNum),
		AcceptedTurnFlows: make([]float64, entriesNum*exitsNum),
		AcceptedSinkFlows: make([]float64, entriesNum),
		AcceptedExitFlows: make([]float64, exitsNum),
	}
	sending := make([]float64, entriesNum)
	for a := 0; a < entriesNum; a++ {
		sending[a] = input.sinkFlow(a)
		row := input.TurnSendingFlows[a*exitsNum : (a+1)*exitsNum]
		for _, flow := range row {
			sending[a] += flow
		}
	}

	if !nm.isConstrained(&input, sending) {
		for a := 0; a < entriesNum; a++ {
			result.Alphas[a] = 1.0
		}
		nm.applyAlphas(&input, &result)
		return result
	}

	result.Constrained = true
	converged := nm.solveConstrained(&input, sending, result.Alphas)
	nm.applyAlphas(&input, &result)
	if !converged || !nm.isFeasible(&input, sending, &result) {
		nm.fallback(&input, sending, &result, !converged)
	}
	return result
}

// fallback replaces infeasible alphas of result by proportional scaling
func (nm *NodeModel) fallback(input *NodeModelInput, sending []float64, result *NodeModelResult, loopExhausted bool) {
	nm.log.Warn("Node model has not satisfied capacities, fallback to proportional scaling", "node", input.Node, "bounded_loop_exhausted", loopExhausted)
	nm.scaleProportionally(input, sending, result)
	result.Fallback = true
}

// isConstrained checks whether unrestricted flows violate any entry capacity or exit receiving flow
func (nm *NodeModel) isConstrained(input *NodeModelInput, sending []float64) bool {
	exitsNum := input.exitsNum()
	for a, flow := range sending {
		if flow > input.EntryCapacities[a]*(1+nm.capacityTolerance) {
			return true
		}
	}
	for b := 0; b < exitsNum; b++ {
		demand := 0.0
		for a := range sending {
			demand += input.TurnSendingFlows[a*exitsNum+b]
		}
		if demand > input.ExitReceivingFlows[b]*(1+nm.capacityTolerance) {
			return true
		}
	}
	return false
}

// solveConstrained fills alphas. Returns false when bounded loop exits before every entry has been processed
func (nm *NodeModel) solveConstrained(input *NodeModelInput, sending []float64, alphas []float64) bool {
	entriesNum := input.entriesNum()
	exitsNum := input.exitsNum()

	// Entry demand capped by entry capacity
	demand := make([]float64, entriesNum)
	processed := make([]bool, entriesNum)
	outflow := make([]float64, entriesNum)
	for a := 0; a < entriesNum; a++ {
		demand[a] = math.Min(sending[a], input.EntryCapacities[a])
		if sending[a] <= flowEpsilon {
			processed[a] = true
		}
	}
	// Turn demands: demand[a] * turn proportion
	turnDemand := make([]float64, entriesNum*exitsNum)
	for a := 0; a < entriesNum; a++ {
		if processed[a] {
			continue
		}
		scale := demand[a] / sending[a]
		for b := 0; b < exitsNum; b++ {
			turnDemand[a*exitsNum+b] = input.TurnSendingFlows[a*exitsNum+b] * scale
		}
	}
	supply := append([]float64(nil), input.ExitReceivingFlows...)
	activeExit := make([]bool, exitsNum)
	for b := range activeExit {
		activeExit[b] = true
	}

	done := false
	maxIterations := entriesNum + exitsNum + 1
	for iter := 0; iter < maxIterations; iter++ {
		mostRestrictive := -1
		minRatio := math.Inf(1)
		for b := 0; b < exitsNum; b++ {
			if !activeExit[b] {
				continue
			}
			exitDemand := 0.0
			for a := 0; a < entriesNum; a++ {
				if !processed[a] {
					exitDemand += turnDemand[a*exitsNum+b]
				}
			}
			if exitDemand <= flowEpsilon {
				activeExit[b] = false
				continue
			}
			ratio := math.Max(supply[b], 0) / exitDemand
			if ratio < minRatio {
				minRatio = ratio
				mostRestrictive = b
			}
		}
		// Remaining entries are demand constrained
		if mostRestrictive < 0 || minRatio >= 1 {
			for a := 0; a < entriesNum; a++ {
				if !processed[a] {
					outflow[a] = demand[a]
					processed[a] = true
				}
			}
			done = true
			break
		}
		// Every unprocessed entry competing for the most restrictive exit is supply constrained by the same ratio
		for a := 0; a < entriesNum; a++ {
			if processed[a] || turnDemand[a*exitsNum+mostRestrictive] <= flowEpsilon {
				continue
			}
			outflow[a] = minRatio * demand[a]
			processed[a] = true
			for b := 0; b < exitsNum; b++ {
				if activeExit[b] {
					supply[b] -= minRatio * turnDemand[a*exitsNum+b]
				}
			}
		}
		activeExit[mostRestrictive] = false
	}

	for a := 0; a < entriesNum; a++ {
		if sending[a] <= flowEpsilon {
			alphas[a] = 1.0
			continue
		}
		if !processed[a] {
			// left by exhausted loop, keep capacity restriction only
			outflow[a] = demand[a]
		}
		alphas[a] = math.Min(1.0, outflow[a]/sending[a])
	}
	return done
}

// applyAlphas evaluates accepted turn, sink and exit flows for alphas stored in result
func (nm *NodeModel) applyAlphas(input *NodeModelInput, result *NodeModelResult) {
	exitsNum := input.exitsNum()
	for b := range result.AcceptedExitFlows {
		result.AcceptedExitFlows[b] = 0
	}
	for a, alpha := range result.Alphas {
		for b := 0; b < exitsNum; b++ {
			accepted := input.TurnSendingFlows[a*exitsNum+b] * alpha
			result.AcceptedTurnFlows[a*exitsNum+b] = accepted
			result.AcceptedExitFlows[b] += accepted
		}
		result.AcceptedSinkFlows[a] = input.sinkFlow(a) * alpha
	}
}

func (nm *NodeModel) isFeasible(input *NodeModelInput, sending []float64, result *NodeModelResult) bool {
	for b, flow := range result.AcceptedExitFlows {
		if flow > input.ExitReceivingFlows[b]*(1+nm.capacityTolerance) {
			return false
		}
	}
	for a, alpha := range result.Alphas {
		if sending[a]*alpha > input.EntryCapacities[a]*(1+nm.capacityTolerance) {
			return false
		}
		if math.IsNaN(alpha) || alpha < 0 {
			return false
		}
	}
	return true
}

// scaleProportionally restricts every entry feeding a violated exit by the exit's receiving/accepted ratio.
// Single pass is enough: scaling entries down never increases any exit flow
func (nm *NodeModel) scaleProportionally(input *NodeModelInput, sending []float64, result *NodeModelResult) {
	exitsNum := input.exitsNum()
	for a := range result.Alphas {
		if math.IsNaN(result.Alphas[a]) || result.Alphas[a] <= 0 || result.Alphas[a] > 1 {
			result.Alphas[a] = 1.0
		}
		if sending[a] > input.EntryCapacities[a] {
			result.Alphas[a] = math.Min(result.Alphas[a], input.EntryCapacities[a]/sending[a])
		}
	}
	nm.applyAlphas(input, result)
	factors := make([]float64, len(result.Alphas))
	for a := range factors {
		factors[a] = 1.0
	}
	for b, flow := range result.AcceptedExitFlows {
		if flow <= input.ExitReceivingFlows[b] {
			continue
		}
		ratio := input.ExitReceivingFlows[b] / flow
		for a := range factors {
			if input.TurnSendingFlows[a*exitsNum+b] > flowEpsilon {
				factors[a] = math.Min(factors[a], ratio)
			}
		}
	}
	for a := range result.Alphas {
		result.Alphas[a] *= factors[a]
	}
	nm.applyAlphas(input, result)
}
