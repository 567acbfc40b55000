package sltm

// TurnUpdateConsumer wraps another consumer and records only origin injections and turn flows at tracked nodes.
// Sending flows are left untouched: they are updated locally by the node level sweeps
type TurnUpdateConsumer struct {
	inner FlowConsumer
}

// NewTurnUpdateConsumer wraps consumer
func NewTurnUpdateConsumer(inner FlowConsumer) *TurnUpdateConsumer {
	return &TurnUpdateConsumer{inner: inner}
}

func (consumer *TurnUpdateConsumer) Units() int {
	return consumer.inner.Units()
}

func (consumer *TurnUpdateConsumer) ConsumeUnit(unit int, acc *FlowAccumulator) {
	consumer.inner.ConsumeUnit(unit, acc.turnsOnly())
}

func (consumer *TurnUpdateConsumer) VisitUnitNodes(unit int, visit func(NodeID)) {
	consumer.inner.VisitUnitNodes(unit, visit)
}
