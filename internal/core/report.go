package core

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"seqtrack/internal/catalog"
	"seqtrack/pkg/lims"
)

// SampleReport is the flat trending record of one sample. Unknown values are
// omitted from its JSON form.
type SampleReport struct {
	SampleID       string         `json:"sample_id"`
	ApplicationTag string         `json:"application_tag,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`

	ReceivedAt  *time.Time `json:"received_date,omitempty"`
	PreparedAt  *time.Time `json:"prepared_date,omitempty"`
	SequencedAt *time.Time `json:"sequenced_date,omitempty"`
	DeliveredAt *time.Time `json:"delivery_date,omitempty"`
	Spans

	Amount               *float64 `json:"amount,omitempty"`
	AmountConcentration  *float64 `json:"amount_concentration,omitempty"`
	Defrosts             *int     `json:"nr_defrosts,omitempty"`
	DefrostConcentration *float64 `json:"nr_defrosts_concentration,omitempty"`
	LotNumber            string   `json:"lotnr,omitempty"`

	MicrobialLibraryConcentration *float64         `json:"microbial_library_concentration,omitempty"`
	LibrarySizePreHyb             *float64         `json:"library_size_pre_hyb,omitempty"`
	LibrarySizePostHyb            *float64         `json:"library_size_post_hyb,omitempty"`
	LibraryWorkflow               catalog.Workflow `json:"library_workflow,omitempty"`

	Methods     map[catalog.MethodCategory]string `json:"methods,omitempty"`
	Ambiguities []lims.Ambiguity                  `json:"ambiguities,omitempty"`
}

// BuildSampleReport assembles the trending record of one sample.
func (s *Service) BuildSampleReport(ctx context.Context, sampleID string) (SampleReport, error) {
	var out SampleReport
	err := s.run(ctx, "build_report", sampleID, func(ctx context.Context) error {
		var err error
		out, err = s.buildReport(ctx, sampleID)
		return err
	})
	return out, err
}

func (s *Service) buildReport(ctx context.Context, sampleID string) (SampleReport, error) {
	sample, err := s.sample(ctx, sampleID)
	if err != nil {
		return SampleReport{}, err
	}
	dates, err := s.dates(ctx, sample)
	if err != nil {
		return SampleReport{}, err
	}
	received := dates.At(catalog.EventReceived)
	m, err := s.sampleMetrics(ctx, sample, received)
	if err != nil {
		return SampleReport{}, err
	}
	methods, err := s.resolver.Methods(ctx, sample.ID)
	if err != nil {
		return SampleReport{}, err
	}

	r := SampleReport{
		SampleID:       sample.ID,
		ApplicationTag: m.ApplicationTag,
		Fields:         s.reportFields(sample),
		ReceivedAt:     received,
		PreparedAt:     dates.At(catalog.EventPrepared),
		SequencedAt:    dates.At(catalog.EventSequenced),
		DeliveredAt:    dates.At(catalog.EventDelivered),
		Spans:          dates.Spans,

		Amount:              m.FinalAmount.Amount,
		AmountConcentration: m.FinalAmount.Concentration,

		MicrobialLibraryConcentration: m.MicrobialConcentration,
		LibrarySizePreHyb:             m.LibrarySize.PreHyb,
		LibrarySizePostHyb:            m.LibrarySize.PostHyb,
		LibraryWorkflow:               m.LibrarySize.Workflow,
	}
	if !m.Defrosts.Empty() {
		count := m.Defrosts.Count
		r.Defrosts = &count
		r.DefrostConcentration = m.Defrosts.Concentration
		r.LotNumber = m.Defrosts.LotNumber
	}
	for category, method := range methods {
		if method == nil {
			continue
		}
		if r.Methods == nil {
			r.Methods = make(map[catalog.MethodCategory]string, len(methods))
		}
		r.Methods[category] = method.String()
	}
	r.Ambiguities = append(dates.Ambiguities(), m.Defrosts.Ambiguities...)
	return r, nil
}

func (s *Service) reportFields(sample lims.Sample) map[string]any {
	var out map[string]any
	for field, key := range s.catalog.SampleAttributes.Report {
		v, ok := sample.Attributes.Lookup(key)
		if !ok || v == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[field] = v
	}
	return out
}

// Skipped reports whether sampleID is excluded from reporting.
func (s *Service) Skipped(sampleID string) bool {
	_, ok := s.skip[sampleID]
	return ok
}

// BuildReports builds reports for every non-skipped sample. Failures are
// collected and returned together after the remaining samples are built.
func (s *Service) BuildReports(ctx context.Context, sampleIDs []string) ([]SampleReport, error) {
	var (
		reports []SampleReport
		errs    *multierror.Error
	)
	err := s.run(ctx, "build_reports", "", func(ctx context.Context) error {
		for _, id := range sampleIDs {
			if s.Skipped(id) {
				s.logger.Info("skipping sample", "sample_id", id)
				continue
			}
			r, err := s.buildReport(ctx, id)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("sample %s: %w", id, err))
				continue
			}
			reports = append(reports, r)
		}
		return errs.ErrorOrNil()
	})
	return reports, err
}
