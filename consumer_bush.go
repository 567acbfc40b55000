package sltm

import (
	"log/slog"

	"github.com/pkg/errors"
)

// BushFlowConsumer propagates demand of origin-based bushes. Every bush segment is visited in topological order,
// so the flow arriving to a segment is complete before it is split among outgoing turns
type BushFlowConsumer struct {
	bushes  []*Bush
	log     *slog.Logger
	skipped int
}

// NewBushFlowConsumer builds (if needed) every bush. Empty bushes are skipped with a single warning
func NewBushFlowConsumer(bushes []*Bush, log *slog.Logger) (*BushFlowConsumer, error) {
	if log == nil {
		log = slog.Default()
	}
	consumer := &BushFlowConsumer{
		bushes: make([]*Bush, 0, len(bushes)),
		log:    log,
	}
	for i, bush := range bushes {
		if bush.IsEmpty() {
			log.Warn("Bush has no segments, it will not be loaded", "origin", bush.Origin())
			consumer.skipped++
			continue
		}
		if !bush.built {
			if err := bush.Build(); err != nil {
				return nil, errors.Wrapf(err, "Bush #%d is invalid", i)
			}
		}
		if bush.Demand() == 0 {
			consumer.skipped++
			continue
		}
		consumer.bushes = append(consumer.bushes, bush)
	}
	return consumer, nil
}

// Units returns number of loadable bushes
func (consumer *BushFlowConsumer) Units() int {
	return len(consumer.bushes)
}

// Skipped returns number of bushes which are not loaded
func (consumer *BushFlowConsumer) Skipped() int {
	return consumer.skipped
}

func (consumer *BushFlowConsumer) ConsumeUnit(unit int, acc *FlowAccumulator) {
	bush := consumer.bushes[unit]
	arrived := make([]float64, len(bush.order))
	for _, root := range bush.roots {
		flow := bush.demand * root.share
		acc.Inject(bush.order[root.pos], flow)
		arrived[root.pos] += flow
	}
	for pos, segmentID := range bush.order {
		flow := arrived[pos]
		if flow <= 0 {
			continue
		}
		acc.Send(segmentID, flow)
		node := bush.targets[pos]
		alpha := acc.AcceptanceFactor(segmentID)
		for _, exit := range bush.exits[pos] {
			turnFlow := flow * exit.share
			acc.Turn(node, segmentID, exit.segment, turnFlow)
			if exit.pos >= 0 {
				arrived[exit.pos] += turnFlow * alpha
			}
		}
	}
}

func (consumer *BushFlowConsumer) VisitUnitNodes(unit int, visit func(NodeID)) {
	for _, node := range consumer.bushes[unit].targets {
		visit(node)
	}
}
