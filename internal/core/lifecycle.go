package core

import (
	"context"
	"time"

	"seqtrack/internal/catalog"
	"seqtrack/internal/derived"
	"seqtrack/internal/resolve"
	"seqtrack/pkg/lims"
)

// Spans holds the whole-day intervals between lifecycle events. A nil
// field means one of its two dates is unknown.
type Spans struct {
	ReceivedToPrepared   *int `json:"received_to_prepped,omitempty"`
	PreparedToSequenced  *int `json:"prepped_to_sequenced,omitempty"`
	SequencedToDelivered *int `json:"sequenced_to_delivered,omitempty"`
	ReceivedToDelivered  *int `json:"received_to_delivered,omitempty"`
}

// SampleDates is the resolved lifecycle of one sample.
type SampleDates struct {
	SampleID    string                                   `json:"sample_id"`
	Resolutions map[catalog.Event]resolve.DateResolution `json:"resolutions"`
	Spans       Spans                                    `json:"spans"`
}

// At returns the resolved date of event, nil when unknown.
func (d SampleDates) At(event catalog.Event) *time.Time {
	return d.Resolutions[event].At
}

// Ambiguities collects the ambiguities of every event.
func (d SampleDates) Ambiguities() []lims.Ambiguity {
	var out []lims.Ambiguity
	for _, ev := range catalog.Events {
		out = append(out, d.Resolutions[ev].Ambiguities...)
	}
	return out
}

func spansOf(at func(catalog.Event) *time.Time) Spans {
	days := func(a, b catalog.Event) *int {
		n, ok := resolve.DaysBetween(at(a), at(b))
		if !ok {
			return nil
		}
		return &n
	}
	return Spans{
		ReceivedToPrepared:   days(catalog.EventReceived, catalog.EventPrepared),
		PreparedToSequenced:  days(catalog.EventPrepared, catalog.EventSequenced),
		SequencedToDelivered: days(catalog.EventSequenced, catalog.EventDelivered),
		ReceivedToDelivered:  days(catalog.EventReceived, catalog.EventDelivered),
	}
}

// ResolveDate resolves a single lifecycle event.
func (s *Service) ResolveDate(ctx context.Context, sampleID string, event catalog.Event) (resolve.DateResolution, error) {
	var out resolve.DateResolution
	err := s.run(ctx, "resolve_date", sampleID, func(ctx context.Context) error {
		sample, err := s.sample(ctx, sampleID)
		if err != nil {
			return err
		}
		out, err = s.resolver.Resolve(ctx, sample, event)
		if err != nil {
			return err
		}
		s.warnAmbiguities("resolve_date", out.Ambiguities)
		return nil
	})
	return out, err
}

// Dates resolves all four lifecycle events and the day spans between them.
func (s *Service) Dates(ctx context.Context, sampleID string) (SampleDates, error) {
	var out SampleDates
	err := s.run(ctx, "resolve_dates", sampleID, func(ctx context.Context) error {
		sample, err := s.sample(ctx, sampleID)
		if err != nil {
			return err
		}
		out, err = s.dates(ctx, sample)
		return err
	})
	return out, err
}

func (s *Service) dates(ctx context.Context, sample lims.Sample) (SampleDates, error) {
	all, err := s.resolver.ResolveAll(ctx, sample)
	if err != nil {
		return SampleDates{}, err
	}
	out := SampleDates{SampleID: sample.ID, Resolutions: all}
	out.Spans = spansOf(out.At)
	s.warnAmbiguities("resolve_dates", out.Ambiguities())
	return out, nil
}

// ProcessingTime returns delivered minus received. The flag is false when
// either date is unknown.
func (s *Service) ProcessingTime(ctx context.Context, sampleID string) (time.Duration, bool, error) {
	var (
		d  time.Duration
		ok bool
	)
	err := s.run(ctx, "processing_time", sampleID, func(ctx context.Context) error {
		sample, err := s.sample(ctx, sampleID)
		if err != nil {
			return err
		}
		d, ok, err = s.resolver.ProcessingTime(ctx, sample)
		return err
	})
	return d, ok, err
}

// Method resolves the method used for category, nil when unknown.
func (s *Service) Method(ctx context.Context, sampleID string, category catalog.MethodCategory) (*resolve.Method, error) {
	var out *resolve.Method
	err := s.run(ctx, "resolve_method", sampleID, func(ctx context.Context) error {
		var err error
		out, err = s.resolver.Method(ctx, sampleID, category)
		return err
	})
	return out, err
}

// Methods resolves every method category.
func (s *Service) Methods(ctx context.Context, sampleID string) (map[catalog.MethodCategory]*resolve.Method, error) {
	var out map[catalog.MethodCategory]*resolve.Method
	err := s.run(ctx, "resolve_methods", sampleID, func(ctx context.Context) error {
		var err error
		out, err = s.resolver.Methods(ctx, sampleID)
		return err
	})
	return out, err
}

// SampleMetrics gathers the derived laboratory metrics of one sample.
type SampleMetrics struct {
	SampleID               string              `json:"sample_id"`
	ApplicationTag         string              `json:"application_tag,omitempty"`
	Defrosts               derived.Defrosts    `json:"defrosts"`
	FinalAmount            derived.FinalAmount `json:"final_amount"`
	MicrobialConcentration *float64            `json:"microbial_library_concentration,omitempty"`
	LibrarySize            LibrarySize         `json:"library_size"`
	CaptureKit             string              `json:"capture_kit,omitempty"`
}

// LibrarySize is the pre/post hybridization library size and the workflow
// that produced it.
type LibrarySize struct {
	Workflow catalog.Workflow `json:"workflow,omitempty"`
	PreHyb   *float64         `json:"library_size_pre_hyb,omitempty"`
	PostHyb  *float64         `json:"library_size_post_hyb,omitempty"`
}

// sureSelectCutoff is the reception date before which samples may have been
// prepared with the SureSelect workflow.
var sureSelectCutoff = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// librarySize tries TWIST first and falls back to SureSelect when no
// post-hybridization TWIST size exists and the sample was received before
// the cutoff or its reception date is unknown.
func (s *Service) librarySize(ctx context.Context, appTag, sampleID string, received *time.Time) (LibrarySize, error) {
	pair := func(wf catalog.Workflow) (LibrarySize, error) {
		pre, err := s.calc.LibrarySize(ctx, appTag, sampleID, wf, catalog.PreHyb)
		if err != nil {
			return LibrarySize{}, err
		}
		post, err := s.calc.LibrarySize(ctx, appTag, sampleID, wf, catalog.PostHyb)
		if err != nil {
			return LibrarySize{}, err
		}
		out := LibrarySize{PreHyb: pre, PostHyb: post}
		if pre != nil || post != nil {
			out.Workflow = wf
		}
		return out, nil
	}
	size, err := pair(catalog.WorkflowTwist)
	if err != nil || size.PostHyb != nil {
		return size, err
	}
	if received == nil || received.Before(sureSelectCutoff) {
		return pair(catalog.WorkflowSureSelect)
	}
	return size, nil
}

// Metrics computes defrosts, amounts, library sizes, microbial library
// concentration and capture kit. A capture kit conflict fails the call with
// *lims.DataConflictError.
func (s *Service) Metrics(ctx context.Context, sampleID string) (SampleMetrics, error) {
	var out SampleMetrics
	err := s.run(ctx, "sample_metrics", sampleID, func(ctx context.Context) error {
		sample, err := s.sample(ctx, sampleID)
		if err != nil {
			return err
		}
		received, err := s.resolver.Resolve(ctx, sample, catalog.EventReceived)
		if err != nil {
			return err
		}
		out, err = s.sampleMetrics(ctx, sample, received.At)
		if err != nil {
			return err
		}
		kit, ok, err := s.calc.CaptureKit(ctx, sample)
		if err != nil {
			return err
		}
		if ok {
			out.CaptureKit = kit
		}
		return nil
	})
	return out, err
}

func (s *Service) sampleMetrics(ctx context.Context, sample lims.Sample, received *time.Time) (SampleMetrics, error) {
	tag := s.appTag(sample)
	out := SampleMetrics{SampleID: sample.ID, ApplicationTag: tag}
	var err error
	if out.Defrosts, err = s.calc.ConcentrationAndDefrosts(ctx, tag, sample.ID); err != nil {
		return SampleMetrics{}, err
	}
	s.warnAmbiguities("sample_metrics", out.Defrosts.Ambiguities)
	if out.FinalAmount, err = s.calc.FinalConcentrationAndAmount(ctx, tag, sample.ID); err != nil {
		return SampleMetrics{}, err
	}
	if out.MicrobialConcentration, err = s.calc.MicrobialLibraryConcentration(ctx, tag, sample.ID); err != nil {
		return SampleMetrics{}, err
	}
	if out.LibrarySize, err = s.librarySize(ctx, tag, sample.ID, received); err != nil {
		return SampleMetrics{}, err
	}
	return out, nil
}
