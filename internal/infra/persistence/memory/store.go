// Package memory provides the in-memory status store. The sqlite and
// postgres stores embed it and snapshot its state after every transaction.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"seqtrack/internal/status"
)

var _ status.Store = (*Store)(nil)

type memoryState struct {
	samples map[string]status.SampleStatus
	exports []status.Export
}

func newMemoryState() memoryState {
	return memoryState{samples: make(map[string]status.SampleStatus)}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		samples: make(map[string]status.SampleStatus, len(s.samples)),
		exports: slices.Clone(s.exports),
	}
	for id, st := range s.samples {
		out.samples[id] = st.Clone()
	}
	return out
}

// Store keeps status state in memory.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// ExportState returns a snapshot of the current state, samples ordered by id.
func (s *Store) ExportState() status.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := status.Snapshot{
		Samples: make([]status.SampleStatus, 0, len(s.state.samples)),
		Exports: slices.Clone(s.state.exports),
	}
	for _, st := range s.state.samples {
		snap.Samples = append(snap.Samples, st.Clone())
	}
	slices.SortFunc(snap.Samples, func(a, b status.SampleStatus) int { return strings.Compare(a.SampleID, b.SampleID) })
	return snap
}

// ImportState replaces the store state with snapshot.
func (s *Store) ImportState(snapshot status.Snapshot) {
	st := newMemoryState()
	for _, sample := range snapshot.Samples {
		if sample.SampleID == "" {
			continue
		}
		st.samples[sample.SampleID] = sample.Clone()
	}
	st.exports = slices.Clone(snapshot.Exports)
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RunInTransaction applies fn to a copy of the state and commits the copy
// when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(status.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only copy of the state.
func (s *Store) View(_ context.Context, fn func(status.View) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(&transaction{state: snapshot})
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type transaction struct {
	state memoryState
}

func (tx *transaction) Sample(id string) (status.SampleStatus, bool) {
	st, ok := tx.state.samples[id]
	if !ok {
		return status.SampleStatus{}, false
	}
	return st.Clone(), true
}

func (tx *transaction) Samples() []status.SampleStatus {
	out := make([]status.SampleStatus, 0, len(tx.state.samples))
	for _, st := range tx.state.samples {
		out = append(out, st.Clone())
	}
	slices.SortFunc(out, func(a, b status.SampleStatus) int { return strings.Compare(a.SampleID, b.SampleID) })
	return out
}

func (tx *transaction) Exports() []status.Export {
	return slices.Clone(tx.state.exports)
}

func (tx *transaction) PutSample(st status.SampleStatus) {
	tx.state.samples[st.SampleID] = st.Clone()
}

func (tx *transaction) AddExport(e status.Export) {
	tx.state.exports = append(tx.state.exports, e)
}
