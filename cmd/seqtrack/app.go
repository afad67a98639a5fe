package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"seqtrack/internal/archive"
	"seqtrack/internal/catalog"
	"seqtrack/internal/config"
	"seqtrack/internal/core"
	"seqtrack/internal/infra/lims/memory"
	"seqtrack/internal/infra/lims/rest"
	"seqtrack/pkg/lims"
)

// app holds the state shared by the commands of one invocation. The service
// is built on first use so that commands which never touch the LIMS run
// without LIMS configuration.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *core.PrometheusMetricsRecorder
	trace   *os.File
	arc     *archive.Archive
	svc     *core.Service
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	a.cfg = cfg
	a.logger = newLogger(a.errOut, cfg)
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openLIMS(cfg config.LIMSConfig) (lims.Client, error) {
	switch cfg.Driver {
	case config.LIMSDriverFixture:
		return memory.LoadFile(cfg.Fixture)
	case config.LIMSDriverREST:
		return rest.New(rest.Options{
			BaseURL:   cfg.URL,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Timeout:   cfg.Timeout,
			CacheTTL:  cfg.CacheTTL,
			CacheSize: cfg.CacheSize,
		})
	default:
		return nil, fmt.Errorf("unknown lims driver %q", cfg.Driver)
	}
}

// service builds the core service. withArchive also opens the report
// archive.
func (a *app) service(ctx context.Context, withArchive bool) (*core.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	client, err := openLIMS(cfg.LIMS)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenStatusStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	opts := []core.Option{
		core.WithLogger(a.logger),
		core.WithAuditRecorder(core.NewJSONAuditRecorder(a.errOut)),
		core.WithStatusStore(store),
		core.WithTieBreak(cfg.TieBreak()),
		core.WithMaxHops(cfg.Catalog.MaxHops),
		core.WithSkipSamples(cfg.Report.SkipSamples...),
	}
	switch cfg.Metrics.Driver {
	case config.MetricsDriverPrometheus:
		a.metrics = core.NewPrometheusMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(a.metrics))
	case config.MetricsDriverExpvar:
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
	}
	if cfg.Trace.File != "" {
		f, err := os.OpenFile(cfg.Trace.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	if withArchive {
		arc, err := a.reportArchive(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, core.WithArchive(arc))
	}
	a.svc = core.NewService(client, cat, opts...)
	return a.svc, nil
}

// reportArchive opens the configured report archive without touching the LIMS.
func (a *app) reportArchive(ctx context.Context) (*archive.Archive, error) {
	if a.arc != nil {
		return a.arc, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	arc, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	a.arc = arc
	return arc, nil
}

// close releases the status store, writes the metrics textfile and closes
// the trace file.
func (a *app) close() error {
	var errs *multierror.Error
	if a.metrics != nil && a.cfg != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close status store: %w", err))
		}
	}
	if a.trace != nil {
		if err := a.trace.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close trace file: %w", err))
		}
	}
	return errs.ErrorOrNil()
}
