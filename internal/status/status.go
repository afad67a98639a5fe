// Package status defines the status database seqtrack writes: resolved
// lifecycle dates per sample and the report exports that were archived.
package status

import (
	"context"
	"time"

	"seqtrack/internal/catalog"
)

// SampleStatus holds the lifecycle dates stored for one sample.
type SampleStatus struct {
	SampleID  string                      `json:"sample_id"`
	Dates     map[catalog.Event]time.Time `json:"dates"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Date returns the stored date of event.
func (s SampleStatus) Date(event catalog.Event) (time.Time, bool) {
	d, ok := s.Dates[event]
	return d, ok
}

// Clone returns a deep copy.
func (s SampleStatus) Clone() SampleStatus {
	out := s
	if s.Dates != nil {
		out.Dates = make(map[catalog.Event]time.Time, len(s.Dates))
		for k, v := range s.Dates {
			out.Dates[k] = v
		}
	}
	return out
}

// Export records one archived report batch.
type Export struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	Count          int       `json:"count"`
	CatalogVersion string    `json:"catalog_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// Snapshot is the complete persisted state.
type Snapshot struct {
	Samples []SampleStatus `json:"samples"`
	Exports []Export       `json:"exports"`
}

// View is a read-only view of the state.
type View interface {
	Sample(id string) (SampleStatus, bool)
	Samples() []SampleStatus
	Exports() []Export
}

// Transaction mutates the state. Changes become visible only when the
// enclosing RunInTransaction callback returns nil.
type Transaction interface {
	View
	PutSample(s SampleStatus)
	AddExport(e Export)
}

// Store persists status state.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(View) error) error
	Close() error
}
