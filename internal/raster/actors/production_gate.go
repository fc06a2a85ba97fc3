package actors

import (
	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

type admissionRecord struct {
	qi            *queryinfo.QueryInfos
	pulledCount   int
	allowedCount  int
	producedCount int
}

// ProductionGate admits produce tasks under output-queue backpressure
// (spec.md §4.3). No production_gate.py file survived this repo's
// trimmed original-source excerpt; spec.md §4.5 describes
// ComputationGate as mirroring ProductionGate, so this is grounded on
// the real `original_source/buzzard/_actors/computation_gate.py`'s
// admission/record/sweep shape (`_Query`, `receive_output_queue_update`,
// the `_allow` forward sweep) with the roles inverted back per spec.md
// §4.3's own admission rule.
type ProductionGate struct {
	group   string
	records map[string]*admissionRecord
	alive   bool
}

func NewProductionGate(group string) *ProductionGate {
	return &ProductionGate{group: group, records: make(map[string]*admissionRecord), alive: true}
}

func (g *ProductionGate) Address() actor.Address { return actor.Address{Group: g.group, Name: NameProductionGate} }
func (g *ProductionGate) Alive() bool            { return g.alive }

func (g *ProductionGate) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "make_those_arrays":
		qi := args[0].(*queryinfo.QueryInfos)
		g.records[qi.ID] = &admissionRecord{qi: qi}
		return g.admit(qi.ID)
	case "output_queue_update":
		qiID := args[0].(string)
		producedCount := args[1].(int)
		queueSize := args[2].(int)
		rec, ok := g.records[qiID]
		if !ok {
			return nil
		}
		rec.pulledCount = producedCount - queueSize
		rec.producedCount = producedCount
		return g.admit(qiID)
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(g.records, qiID)
	}
	return nil
}

// admit implements spec.md §4.3's forward sweep: emit Producer::
// produce_this_array for every not-yet-allowed index within
// [allowed_count, pulled_count+max_queue_size).
func (g *ProductionGate) admit(qiID string) []actor.Msg {
	rec, ok := g.records[qiID]
	if !ok {
		return nil
	}
	total := len(rec.qi.ListOfProduceFP)
	maxAllowed := rec.pulledCount + rec.qi.MaxQueueSize

	src := g.Address()
	var out []actor.Msg
	for i := rec.allowedCount; i < total && i < maxAllowed; i++ {
		out = append(out, actor.NewMsg(src, NameProducer, "produce_this_array", qiID, i))
		rec.allowedCount++
	}
	if rec.producedCount >= total {
		// produced_count == len(list_of_produce_fp): terminate and drop.
		delete(g.records, qiID)
	}
	return out
}
