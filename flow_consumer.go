package sltm

// FlowConsumer propagates demand through the network during loading pass.
// Demand is split into independent units (routes, bushes) which could be consumed concurrently,
// each unit writing into accumulator owned by the calling worker.
type FlowConsumer interface {
	// Units returns number of demand units
	Units() int
	// ConsumeUnit traverses single unit. Implementation must only read acceptance factors and write into acc
	ConsumeUnit(unit int, acc *FlowAccumulator)
	// VisitUnitNodes calls visit for every node where unit's flow moves from one segment to another or terminates
	VisitUnitNodes(unit int, visit func(NodeID))
}
