// Package lineage follows artifacts backward through the executions that
// produced and consumed them.
package lineage

import (
	"context"

	"seqtrack/internal/history"
	"seqtrack/pkg/lims"
)

// DefaultMaxHops bounds WalkBackToStep. Real lineages are a handful of steps
// deep; anything longer is treated as a cycle in the LIMS data.
const DefaultMaxHops = 64

// Walker answers lineage questions for one sample at a time.
type Walker struct {
	index   *history.Index
	maxHops int
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxHops overrides the hop ceiling of WalkBackToStep. Values below one
// are ignored.
func WithMaxHops(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxHops = n
		}
	}
}

// New constructs a Walker over index.
func New(index *history.Index, opts ...Option) *Walker {
	w := &Walker{index: index, maxHops: DefaultMaxHops}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Index returns the history index the walker queries.
func (w *Walker) Index() *history.Index { return w.index }

// MaxHops returns the configured hop ceiling.
func (w *Walker) MaxHops() int { return w.maxHops }

// LatestInputArtifact returns the input artifact of sampleID consumed by the
// most recent execution of step. It returns nil when the step never ran for
// the sample or none of its inputs belongs to the sample.
func (w *Walker) LatestInputArtifact(ctx context.Context, step, sampleID string) (*lims.Artifact, error) {
	occs, err := w.index.Find(ctx, sampleID, []string{step}, "")
	if err != nil {
		return nil, err
	}
	latest, ok := w.index.MostRecent(occs)
	if !ok {
		return nil, nil
	}
	return w.inputOf(ctx, latest.Execution, sampleID)
}

// InputArtifacts returns every input of exec, in recorded order.
func (w *Walker) InputArtifacts(ctx context.Context, exec lims.ProcessExecution) ([]lims.Artifact, error) {
	out := make([]lims.Artifact, 0, len(exec.InputIDs))
	for _, id := range exec.InputIDs {
		art, err := w.index.Client().Artifact(ctx, id)
		if err != nil {
			return nil, lims.WrapSource("artifact", err)
		}
		out = append(out, art)
	}
	return out, nil
}

// inputOf returns the first input of exec associated with sampleID.
func (w *Walker) inputOf(ctx context.Context, exec lims.ProcessExecution, sampleID string) (*lims.Artifact, error) {
	for _, id := range exec.InputIDs {
		art, err := w.index.Client().Artifact(ctx, id)
		if err != nil {
			return nil, lims.WrapSource("artifact", err)
		}
		if art.HasSample(sampleID) {
			return &art, nil
		}
	}
	return nil, nil
}

// OutputArtifact returns the artifact of sampleID produced by the earliest,
// or with preferLatest the most recent, dated execution of any step in steps.
// Undated executions are never candidates. Equal dates follow the index
// tie-break, which by default keeps the first one found.
func (w *Walker) OutputArtifact(ctx context.Context, steps []string, sampleID string, preferLatest bool) (*lims.Artifact, error) {
	occs, err := w.index.Find(ctx, sampleID, steps, "")
	if err != nil {
		return nil, err
	}
	var (
		chosen history.Occurrence
		ok     bool
	)
	if preferLatest {
		chosen, ok = w.index.MostRecent(occs)
	} else {
		chosen, ok = w.index.Earliest(occs)
	}
	if !ok {
		return nil, nil
	}
	art := chosen.Artifact
	return &art, nil
}

// WalkBackToStep steps backward from start one production level at a time,
// using the latest input artifact of each execution's step, until it reaches
// an artifact consumed by an execution of target. It returns that artifact,
// or nil when the lineage ends first. A walk revisiting an artifact or
// exceeding the hop ceiling fails with a *lims.LineageError.
func (w *Walker) WalkBackToStep(ctx context.Context, start lims.ProcessExecution, target, sampleID string) (*lims.Artifact, error) {
	seen := make(map[string]struct{})
	step := &start
	for hops := 0; step != nil; hops++ {
		if hops >= w.maxHops {
			return nil, w.lineageError(start, target, sampleID, hops, "hop ceiling reached")
		}
		art, err := w.LatestInputArtifact(ctx, step.StepName, sampleID)
		if err != nil {
			return nil, err
		}
		if art == nil {
			return nil, nil
		}
		if _, dup := seen[art.ID]; dup {
			return nil, w.lineageError(start, target, sampleID, hops, "artifact "+art.ID+" revisited")
		}
		seen[art.ID] = struct{}{}

		consumers, err := w.index.Client().Processes(ctx, lims.ProcessQuery{InputArtifactID: art.ID})
		if err != nil {
			return nil, lims.WrapSource("processes", err)
		}
		for _, c := range consumers {
			if c.StepName == target {
				return art, nil
			}
		}
		step = art.Parent
	}
	return nil, nil
}

func (w *Walker) lineageError(start lims.ProcessExecution, target, sampleID string, hops int, reason string) error {
	return &lims.LineageError{SampleID: sampleID, From: start.StepName, Target: target, Hops: hops, Reason: reason}
}
