package core

import (
	"seqtrack/internal/archive"
	"seqtrack/internal/history"
	"seqtrack/internal/lineage"
	"seqtrack/internal/status"
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	audit       AuditRecorder
	tieBreak    history.TieBreak
	maxHops     int
	status      status.Store
	archive     *archive.Archive
	skipSamples []string
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:    ClockFunc(nil),
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		tieBreak: history.TieFirstSeen,
		maxHops:  lineage.DefaultMaxHops,
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithTieBreak selects how equally dated executions are ordered.
func WithTieBreak(tb history.TieBreak) Option {
	return func(o *serviceOptions) { o.tieBreak = tb }
}

// WithMaxHops bounds lineage walks. Non-positive values keep the default.
func WithMaxHops(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.maxHops = n
		}
	}
}

// WithStatusStore sets the status database. An in-memory store is used
// otherwise.
func WithStatusStore(store status.Store) Option {
	return func(o *serviceOptions) {
		if store != nil {
			o.status = store
		}
	}
}

// WithArchive enables ExportReports.
func WithArchive(a *archive.Archive) Option {
	return func(o *serviceOptions) { o.archive = a }
}

// WithSkipSamples lists sample ids that are never reported, such as
// internal test samples.
func WithSkipSamples(ids ...string) Option {
	return func(o *serviceOptions) { o.skipSamples = append(o.skipSamples, ids...) }
}
