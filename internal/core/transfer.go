package core

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"seqtrack/internal/catalog"
	"seqtrack/internal/status"
)

// TransferResult summarizes a TransferDates run.
type TransferResult struct {
	Event     catalog.Event `json:"event"`
	Updated   []string      `json:"updated,omitempty"`
	Unchanged []string      `json:"unchanged,omitempty"`
	Missing   []string      `json:"missing,omitempty"`
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// TransferDates copies the resolved date of event into the status store for
// each sample. A stored date on the same calendar day is left untouched and
// samples without a resolvable date are skipped. Per-sample failures are
// aggregated; the remaining samples are still processed.
func (s *Service) TransferDates(ctx context.Context, event catalog.Event, sampleIDs []string) (TransferResult, error) {
	result := TransferResult{Event: event}
	err := s.run(ctx, "transfer_dates", "", func(ctx context.Context) error {
		if _, ok := s.catalog.EventConfig(event); !ok {
			return fmt.Errorf("unknown event %q", event)
		}
		var errs *multierror.Error
		for _, id := range sampleIDs {
			outcome, err := s.transferDate(ctx, event, id)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("sample %s: %w", id, err))
				continue
			}
			switch outcome {
			case transferUpdated:
				result.Updated = append(result.Updated, id)
			case transferUnchanged:
				result.Unchanged = append(result.Unchanged, id)
			default:
				result.Missing = append(result.Missing, id)
			}
		}
		return errs.ErrorOrNil()
	})
	return result, err
}

type transferOutcome int

const (
	transferMissing transferOutcome = iota
	transferUnchanged
	transferUpdated
)

func (s *Service) transferDate(ctx context.Context, event catalog.Event, sampleID string) (transferOutcome, error) {
	started := s.clock.Now()
	sample, err := s.sample(ctx, sampleID)
	if err != nil {
		return transferMissing, err
	}
	res, err := s.resolver.Resolve(ctx, sample, event)
	if err != nil {
		return transferMissing, err
	}
	s.warnAmbiguities("transfer_dates", res.Ambiguities)
	if !res.Found() {
		s.logger.Debug("no date found", "sample_id", sampleID, "event", event)
		return transferMissing, nil
	}
	resolved := *res.At
	var (
		old     time.Time
		had     bool
		outcome = transferUnchanged
	)
	err = s.status.RunInTransaction(ctx, func(tx status.Transaction) error {
		current, ok := tx.Sample(sampleID)
		old, had = current.Date(event)
		if had && sameDay(old, resolved) {
			return nil
		}
		if !ok {
			current = status.SampleStatus{SampleID: sampleID}
		}
		current = current.Clone()
		if current.Dates == nil {
			current.Dates = make(map[catalog.Event]time.Time, 1)
		}
		current.Dates[event] = resolved
		current.UpdatedAt = s.clock.Now()
		tx.PutSample(current)
		outcome = transferUpdated
		return nil
	})
	if err != nil {
		s.recordAudit(ctx, "transfer_date", sampleID, string(event), started, err)
		return transferMissing, err
	}
	if outcome == transferUpdated {
		args := []any{"sample_id", sampleID, "event", event, "date", resolved}
		if had {
			args = append(args, "old", old)
		}
		s.logger.Info("new date", args...)
		s.recordAudit(ctx, "transfer_date", sampleID, string(event), started, nil)
	}
	return outcome, nil
}

// SampleStatus returns the stored status of sampleID.
func (s *Service) SampleStatus(ctx context.Context, sampleID string) (status.SampleStatus, bool, error) {
	var (
		out status.SampleStatus
		ok  bool
	)
	err := s.status.View(ctx, func(v status.View) error {
		out, ok = v.Sample(sampleID)
		return nil
	})
	return out, ok, err
}
