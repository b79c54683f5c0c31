package store

import (
	"closeout.app/engine/core/db"
)

type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Reports() ReportStore {
	return newReportStore(s.q)
}

func (s *Stores) Journal() JournalStore {
	return newJournalStore(s.q)
}

func (s *Stores) ClientLinks() ClientLinkStore {
	return newClientLinkStore(s.q)
}

func (s *Stores) Mappings() MappingStore {
	return newMappingStore(s.q)
}
