package tracking

import (
	"context"
	"sort"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
)

// Index maps identity keys to the tracking records of open tickets. It belongs to a
// single reconciliation run and is not safe for concurrent use.
type Index struct {
	records map[string]*model.TrackingRecord
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{records: make(map[string]*model.TrackingRecord)}
}

// BuildIndex parses the open tickets into an index. Tickets without the tracking layout
// are skipped. When two tickets share a key the lower ticket number is kept.
func BuildIndex(ctx context.Context, tickets []*model.Ticket) *Index {
	logger := ctxlog.From(ctx)

	sorted := make([]*model.Ticket, len(tickets))
	copy(sorted, tickets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})

	idx := NewIndex()
	for _, ticket := range sorted {
		rec, ok := Parse(ticket)
		if !ok {
			logger.Debug("Ticket is not a tracking ticket", "number", ticket.Number, "title", ticket.Title)
			continue
		}

		key := rec.IdentityKey()
		if existing, found := idx.records[key]; found {
			logger.Warn("Duplicated tracking ticket ignored",
				"key", key,
				"kept", existing.TicketNumber,
				"ignored", rec.TicketNumber,
			)
			continue
		}
		idx.records[key] = rec
	}

	return idx
}

// Lookup returns the record for key, or nil
func (x *Index) Lookup(key string) *model.TrackingRecord {
	return x.records[key]
}

// Put inserts or replaces the record under its identity key
func (x *Index) Put(rec *model.TrackingRecord) {
	x.records[rec.IdentityKey()] = rec
}

// Delete removes the record for key
func (x *Index) Delete(key string) {
	delete(x.records, key)
}

// Len returns the number of records
func (x *Index) Len() int {
	return len(x.records)
}

// Records returns all records ordered by ticket number
func (x *Index) Records() []*model.TrackingRecord {
	recs := make([]*model.TrackingRecord, 0, len(x.records))
	for _, rec := range x.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].TicketNumber < recs[j].TicketNumber
	})
	return recs
}
