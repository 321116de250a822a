package coordinator

import (
	"github.com/farmsense/server/internal/agent/model"
)

// CollectedState holds the last record received per kind. Every kind starts
// unset. It is owned by one Coordinator and is not safe for concurrent use.
type CollectedState struct {
	records map[model.SourceKind]model.Record
}

func NewCollectedState() *CollectedState {
	return &CollectedState{records: make(map[model.SourceKind]model.Record, len(model.SourceKinds))}
}

// Set overwrites whatever was stored for the record's kind.
func (s *CollectedState) Set(rec model.Record) {
	s.records[rec.Kind()] = rec
}

func (s *CollectedState) Get(kind model.SourceKind) (model.Record, bool) {
	rec, ok := s.records[kind]
	return rec, ok
}

func (s *CollectedState) Has(kind model.SourceKind) bool {
	_, ok := s.records[kind]
	return ok
}

// Populated lists the kinds currently set, in model.SourceKinds order.
func (s *CollectedState) Populated() []model.SourceKind {
	out := make([]model.SourceKind, 0, len(s.records))
	for _, k := range model.SourceKinds {
		if _, ok := s.records[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Snapshot copies the populated entries.
func (s *CollectedState) Snapshot() map[model.SourceKind]model.Record {
	out := make(map[model.SourceKind]model.Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

func (s *CollectedState) Clear(kinds ...model.SourceKind) {
	for _, k := range kinds {
		delete(s.records, k)
	}
}
