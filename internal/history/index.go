// Package history indexes the process executions recorded for a sample in
// the LIMS and provides the date-ordered views the resolvers build on.
package history

import (
	"context"
	"fmt"
	"time"

	"seqtrack/pkg/lims"
)

// Occurrence pairs an output artifact with the execution that produced it.
type Occurrence struct {
	Artifact  lims.Artifact
	Execution lims.ProcessExecution
}

// RunDate returns the run date of the producing execution.
func (o Occurrence) RunDate() (time.Time, bool) {
	if o.Execution.RunDate == nil {
		return time.Time{}, false
	}
	return *o.Execution.RunDate, true
}

// Index answers history queries for samples against a LIMS client. It holds
// no mutable state; each call re-queries the client.
type Index struct {
	client lims.Client
	tie    TieBreak
}

// Option configures an Index.
type Option func(*Index)

// WithTieBreak selects how equal run dates are ordered.
func WithTieBreak(tb TieBreak) Option {
	return func(ix *Index) { ix.tie = tb }
}

// New constructs an Index over client.
func New(client lims.Client, opts ...Option) *Index {
	ix := &Index{client: client, tie: TieFirstSeen}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Client returns the underlying LIMS client.
func (ix *Index) Client() lims.Client { return ix.client }

// TieBreak returns the configured tie-break policy.
func (ix *Index) TieBreak() TieBreak { return ix.tie }

// Find returns every occurrence of any step in stepNames that touched
// sampleID, in step-name order and then in the order the LIMS returned them.
// Steps that never occurred contribute nothing. Artifacts without a parent
// execution are dropped, and identical (run date, artifact) pairs are
// reported once.
func (ix *Index) Find(ctx context.Context, sampleID string, stepNames []string, artifactType string) ([]Occurrence, error) {
	if sampleID == "" || len(stepNames) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var out []Occurrence
	for _, step := range stepNames {
		if step == "" {
			continue
		}
		arts, err := ix.client.Artifacts(ctx, lims.ArtifactQuery{SampleID: sampleID, StepNames: []string{step}, Type: artifactType})
		if err != nil {
			return nil, lims.WrapSource(fmt.Sprintf("artifacts %q", step), err)
		}
		for _, art := range arts {
			if art.Parent == nil {
				continue
			}
			key := dedupeKey(art)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Occurrence{Artifact: art, Execution: *art.Parent})
		}
	}
	return out, nil
}

// MostRecent returns the occurrence with the latest run date.
func (ix *Index) MostRecent(occs []Occurrence) (Occurrence, bool) {
	return MostRecent(occs, ix.tie)
}

// Earliest returns the occurrence with the earliest run date.
func (ix *Index) Earliest(occs []Occurrence) (Occurrence, bool) {
	return Earliest(occs, ix.tie)
}

// Executions returns the distinct executions behind occs in first-seen order.
func Executions(occs []Occurrence) []lims.ProcessExecution {
	seen := make(map[string]struct{}, len(occs))
	out := make([]lims.ProcessExecution, 0, len(occs))
	for _, o := range occs {
		id := o.Execution.ID
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, o.Execution)
	}
	return out
}

func dedupeKey(art lims.Artifact) string {
	date := "undated"
	if d, ok := art.RunDate(); ok {
		date = d.Format(time.RFC3339Nano)
	}
	return date + "|" + art.ID
}
