package core

import (
	"context"
	"fmt"

	"seqtrack/internal/status"
)

// ExportReports builds the reports of sampleIDs and archives them as one
// batch, then records the batch in the status store. Samples whose report
// fails are left out of the batch and their errors are returned alongside
// the export.
func (s *Service) ExportReports(ctx context.Context, sampleIDs []string) (status.Export, error) {
	var exp status.Export
	err := s.run(ctx, "export_reports", "", func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		started := s.clock.Now()
		reports, buildErr := s.BuildReports(ctx, sampleIDs)
		if len(reports) == 0 {
			if buildErr != nil {
				return buildErr
			}
			return fmt.Errorf("no reports to export")
		}
		records := make([]any, len(reports))
		for i := range reports {
			records[i] = reports[i]
		}
		var err error
		exp, err = s.archive.Export(ctx, s.catalog.Version, records...)
		if err != nil {
			s.recordAudit(ctx, "export_reports", "", "", started, err)
			return err
		}
		if err := s.status.RunInTransaction(ctx, func(tx status.Transaction) error {
			tx.AddExport(exp)
			return nil
		}); err != nil {
			s.recordAudit(ctx, "export_reports", "", exp.Key, started, err)
			return fmt.Errorf("record export %s: %w", exp.ID, err)
		}
		s.recordAudit(ctx, "export_reports", "", exp.Key, started, nil)
		s.logger.Info("reports archived", "key", exp.Key, "count", exp.Count)
		return buildErr
	})
	return exp, err
}

// Exports lists the archived batches recorded in the status store.
func (s *Service) Exports(ctx context.Context) ([]status.Export, error) {
	var out []status.Export
	err := s.status.View(ctx, func(v status.View) error {
		out = v.Exports()
		return nil
	})
	return out, err
}
