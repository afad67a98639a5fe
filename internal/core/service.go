// Package core is the seqtrack service: it composes the history index, the
// date and method resolvers, the lineage walker and the derived metrics
// calculator over one LIMS client and one catalog, and wraps every operation
// with logging, metrics, tracing and audit.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seqtrack/internal/archive"
	"seqtrack/internal/catalog"
	"seqtrack/internal/derived"
	"seqtrack/internal/history"
	memstatus "seqtrack/internal/infra/persistence/memory"
	"seqtrack/internal/lineage"
	"seqtrack/internal/resolve"
	"seqtrack/internal/status"
	"seqtrack/pkg/lims"
)

// ErrArchiveDisabled is returned by ExportReports when no archive is configured.
var ErrArchiveDisabled = errors.New("report archive not configured")

// Service answers sample lifecycle questions. It holds no per-request state
// and is safe for concurrent use when its LIMS client and stores are.
type Service struct {
	client   lims.Client
	catalog  *catalog.Catalog
	index    *history.Index
	resolver *resolve.Resolver
	walker   *lineage.Walker
	calc     *derived.Calculator
	status   status.Store
	archive  *archive.Archive
	skip     map[string]struct{}

	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// NewService builds a service over client using cat, or the built-in v1
// catalog when cat is nil.
func NewService(client lims.Client, cat *catalog.Catalog, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cat == nil {
		cat = catalog.V1()
	}
	if o.status == nil {
		o.status = memstatus.NewStore()
	}
	index := history.New(client, history.WithTieBreak(o.tieBreak))
	walker := lineage.New(index, lineage.WithMaxHops(o.maxHops))
	skip := make(map[string]struct{}, len(o.skipSamples))
	for _, id := range o.skipSamples {
		skip[id] = struct{}{}
	}
	return &Service{
		client:   client,
		catalog:  cat,
		index:    index,
		resolver: resolve.New(index, cat),
		walker:   walker,
		calc:     derived.New(cat, walker),
		status:   o.status,
		archive:  o.archive,
		skip:     skip,
		clock:    o.clock,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		audit:    o.audit,
	}
}

// Catalog returns the catalog in use.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// StatusStore returns the status database.
func (s *Service) StatusStore() status.Store { return s.status }

// Close releases the status store.
func (s *Service) Close() error { return s.status.Close() }

// run wraps one operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op, sampleID string, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	s.logger.Debug("operation started", "operation", op, "sample_id", sampleID)
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "sample_id", sampleID, "error", err)
		return err
	}
	s.logger.Debug("operation finished", "operation", op, "sample_id", sampleID, "duration", duration)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, op, sampleID, detail string, started time.Time, err error) {
	entry := AuditEntry{
		Operation: op,
		SampleID:  sampleID,
		Detail:    detail,
		Status:    AuditStatusSuccess,
		Duration:  s.clock.Now().Sub(started),
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) warnAmbiguities(op string, ambs []lims.Ambiguity) {
	for _, a := range ambs {
		s.logger.Warn("ambiguous lims data", "operation", op, "sample_id", a.SampleID, "kind", a.Kind, "count", a.Count, "detail", a.Detail)
	}
}

func (s *Service) sample(ctx context.Context, id string) (lims.Sample, error) {
	sample, err := s.client.Sample(ctx, id)
	if err != nil {
		return lims.Sample{}, fmt.Errorf("load sample %s: %w", id, err)
	}
	return sample, nil
}

func (s *Service) appTag(sample lims.Sample) string {
	if sample.ApplicationTag != "" {
		return sample.ApplicationTag
	}
	tag, _ := sample.Attributes.String(s.catalog.SampleAttributes.ApplicationTag)
	return tag
}
