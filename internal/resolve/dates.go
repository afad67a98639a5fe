// Package resolve computes canonical lifecycle dates and protocol methods for
// a sample from its process history.
package resolve

import (
	"context"
	"time"

	"seqtrack/internal/catalog"
	"seqtrack/internal/history"
	"seqtrack/pkg/lims"
)

// DateSource tells where a resolved date was read from.
type DateSource string

const (
	SourceAttribute DateSource = "attribute"
	SourceRunDate   DateSource = "run_date"
)

// DateResolution is the outcome of resolving one lifecycle event. At is nil
// when the sample has no qualifying execution; that is not an error.
type DateResolution struct {
	Event       catalog.Event    `json:"event"`
	At          *time.Time       `json:"at,omitempty"`
	Step        string           `json:"step,omitempty"`
	ExecutionID string           `json:"execution_id,omitempty"`
	Source      DateSource       `json:"source,omitempty"`
	Ambiguities []lims.Ambiguity `json:"ambiguities,omitempty"`
}

// Found reports whether a date was resolved.
func (d DateResolution) Found() bool { return d.At != nil }

// Resolver resolves dates and methods against a history index using one
// catalog version.
type Resolver struct {
	index   *history.Index
	catalog *catalog.Catalog
}

// New constructs a Resolver.
func New(index *history.Index, cat *catalog.Catalog) *Resolver {
	return &Resolver{index: index, catalog: cat}
}

// Resolve returns the canonical date of event for sample.
//
//   - received:  earliest execution; its recorded arrival date, else its run date.
//   - prepared:  earliest execution; its run date.
//   - sequenced: only when the sample passed sequencing QC; latest execution;
//     its recorded finish date, else its run date.
//   - delivered: earliest execution; its recorded delivery date, else its run date.
func (r *Resolver) Resolve(ctx context.Context, sample lims.Sample, event catalog.Event) (DateResolution, error) {
	res := DateResolution{Event: event}
	cfg, ok := r.catalog.EventConfig(event)
	if !ok || len(cfg.Steps) == 0 {
		return res, nil
	}
	if event == catalog.EventSequenced && cfg.QCAttribute != "" {
		if passed, _ := sample.Attributes.Bool(cfg.QCAttribute); !passed {
			return res, nil
		}
	}
	occs, err := r.index.Find(ctx, sample.ID, r.catalog.StepNames(event), cfg.ArtifactType)
	if err != nil {
		return res, err
	}

	var (
		chosen    history.Occurrence
		found     bool
		useAttr   = true
		ambiguity lims.AmbiguityKind
	)
	switch event {
	case catalog.EventReceived:
		chosen, found = r.index.Earliest(occs)
	case catalog.EventPrepared:
		chosen, found = r.index.Earliest(occs)
		useAttr = false
	case catalog.EventSequenced:
		chosen, found = r.index.MostRecent(occs)
		ambiguity = lims.AmbiguityMultipleSequencing
	case catalog.EventDelivered:
		chosen, found = r.index.Earliest(occs)
		ambiguity = lims.AmbiguityMultipleDeliveries
	default:
		chosen, found = r.index.Earliest(occs)
	}
	if !found {
		return res, nil
	}
	if ambiguity != "" {
		if n := len(history.Executions(occs)); n > 1 {
			res.Ambiguities = append(res.Ambiguities, lims.Ambiguity{Kind: ambiguity, SampleID: sample.ID, Count: n, Detail: string(event)})
		}
	}

	res.Step = chosen.Execution.StepName
	res.ExecutionID = chosen.Execution.ID
	if useAttr {
		if key := r.catalog.DateAttribute(event, chosen.Execution.StepName); key != "" {
			if d, ok := chosen.Execution.Attributes.Date(key); ok {
				at := lims.Midnight(d)
				res.At, res.Source = &at, SourceAttribute
				return res, nil
			}
		}
	}
	run, _ := chosen.RunDate()
	at := lims.Midnight(run)
	res.At, res.Source = &at, SourceRunDate
	return res, nil
}

// ResolveAll resolves every lifecycle event for sample.
func (r *Resolver) ResolveAll(ctx context.Context, sample lims.Sample) (map[catalog.Event]DateResolution, error) {
	out := make(map[catalog.Event]DateResolution, len(catalog.Events))
	for _, ev := range catalog.Events {
		res, err := r.Resolve(ctx, sample, ev)
		if err != nil {
			return nil, err
		}
		out[ev] = res
	}
	return out, nil
}

// ProcessingTime returns the span between reception and delivery.
func (r *Resolver) ProcessingTime(ctx context.Context, sample lims.Sample) (time.Duration, bool, error) {
	received, err := r.Resolve(ctx, sample, catalog.EventReceived)
	if err != nil {
		return 0, false, err
	}
	delivered, err := r.Resolve(ctx, sample, catalog.EventDelivered)
	if err != nil {
		return 0, false, err
	}
	if !received.Found() || !delivered.Found() {
		return 0, false, nil
	}
	return delivered.At.Sub(*received.At), true, nil
}

// DaysBetween returns the whole days from first to second, truncated toward
// zero, and false when either date is missing.
func DaysBetween(first, second *time.Time) (int, bool) {
	if first == nil || second == nil {
		return 0, false
	}
	return int(second.Sub(*first) / (24 * time.Hour)), true
}
