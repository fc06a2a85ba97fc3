package actors

import (
	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

type computeAdmissionRecord struct {
	qi            *queryinfo.QueryInfos
	pulledCount   int
	allowedCount  int
	producedCount int
}

// ComputationGate mirrors ProductionGate but gates compute admissions
// (spec.md §4.5), grounded directly on
// original_source/buzzard/_actors/computation_gate.py, including its
// lazy record creation when output_queue_update races
// compute_those_cache_files.
type ComputationGate struct {
	group   string
	records map[string]*computeAdmissionRecord
	alive   bool
}

func NewComputationGate(group string) *ComputationGate {
	return &ComputationGate{group: group, records: make(map[string]*computeAdmissionRecord), alive: true}
}

func (g *ComputationGate) Address() actor.Address {
	return actor.Address{Group: g.group, Name: NameComputationGate}
}
func (g *ComputationGate) Alive() bool { return g.alive }

func (g *ComputationGate) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "compute_those_cache_files":
		qi := args[0].(*queryinfo.QueryInfos)
		rec, ok := g.records[qi.ID]
		if !ok {
			rec = &computeAdmissionRecord{}
			g.records[qi.ID] = rec
		}
		rec.qi = qi
		return g.allow(qi.ID)
	case "output_queue_update":
		qiID := args[0].(string)
		producedCount := args[1].(int)
		queueSize := args[2].(int)
		rec, ok := g.records[qiID]
		if !ok {
			// Lazily create the record: the size update arrived before
			// compute_those_cache_files, exactly as computation_gate.py
			// handles this race.
			rec = &computeAdmissionRecord{}
			g.records[qiID] = rec
		}
		rec.pulledCount = producedCount - queueSize
		rec.producedCount = producedCount
		if rec.qi == nil {
			return nil
		}
		return g.allow(qiID)
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(g.records, qiID)
	}
	return nil
}

// allow implements the _allow forward sweep: since
// dict_of_min_prod_idx_per_cache_fp is monotone along list_of_cache_fp,
// a single forward scan from allowed_count suffices to find every
// admissible cache tile.
func (g *ComputationGate) allow(qiID string) []actor.Msg {
	rec := g.records[qiID]
	if rec == nil || rec.qi == nil || rec.qi.CacheComputation == nil {
		return nil
	}
	qicc := rec.qi.CacheComputation
	maxAllowed := rec.pulledCount + rec.qi.MaxQueueSize

	src := g.Address()
	var out []actor.Msg
	for rec.allowedCount < len(qicc.MissingCacheFPs) {
		cacheFP := qicc.MissingCacheFPs[rec.allowedCount]
		prodIdx, ok := rec.qi.DictOfMinProdIdxPerCacheFP[cacheFP]
		if !ok {
			prodIdx = 0
		}
		if prodIdx > maxAllowed {
			break
		}
		out = append(out,
			actor.NewMsg(src, NameComputeAccumulator, "compute_this_array", cacheFP),
			actor.NewMsg(src, NameComputer, "compute_this_array", cacheFP),
		)
		rec.allowedCount++
	}

	if rec.producedCount >= len(rec.qi.ListOfProduceFP) {
		delete(g.records, qiID)
	}
	return out
}
