package actors

import (
	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

// Producer is the entry point for one admitted produce index (spec.md
// §4.7): it resolves the produce footprint and hands assembly off to
// CacheExtractor, then relays a downstream failure back to
// QueriesHandler. No producer.py file survived this repo's trimmed
// original-source excerpt, so this is built directly from spec.md
// §4.7's "Producer::produce_this_array(qi, prod_id) obtains the
// produce footprint, asks CacheExtractor for the set of cache tiles
// covering it".
type Producer struct {
	group string
	byID  map[string]*queryinfo.QueryInfos
	alive bool
}

func NewProducer(group string) *Producer {
	return &Producer{group: group, byID: make(map[string]*queryinfo.QueryInfos), alive: true}
}

func (p *Producer) Address() actor.Address { return actor.Address{Group: p.group, Name: NameProducer} }
func (p *Producer) Alive() bool            { return p.alive }

func (p *Producer) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "register_query":
		qi := args[0].(*queryinfo.QueryInfos)
		p.byID[qi.ID] = qi
	case "produce_this_array":
		qiID := args[0].(string)
		prodID := args[1].(int)
		return p.produce(qiID, prodID)
	case "produce_failed":
		qiID := args[0].(string)
		prodID := args[1].(int)
		err := args[2].(error)
		src := p.Address()
		return []actor.Msg{actor.NewMsg(src, NameQueriesHandler, "made_this_array", qiID, prodID, interface{}(nil), err)}
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(p.byID, qiID)
	}
	return nil
}

func (p *Producer) produce(qiID string, prodID int) []actor.Msg {
	qi, ok := p.byID[qiID]
	if !ok {
		return nil
	}
	var produceFP geomodel.Footprint
	if prodID < len(qi.ListOfProduceFP) {
		produceFP = qi.ListOfProduceFP[prodID]
	}
	src := p.Address()
	return []actor.Msg{actor.NewMsg(src, NameCacheExtractor, "assemble_those_cache_files", qi, prodID, produceFP)}
}
