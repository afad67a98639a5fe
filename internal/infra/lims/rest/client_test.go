package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"seqtrack/internal/infra/lims/memory"
	"seqtrack/internal/infra/lims/wire"
	"seqtrack/pkg/lims"
)

// gateway serves the LIMS REST routes from a memory client.
func gateway(t *testing.T, src *memory.Client, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any, err error) {
		if errors.Is(err, lims.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/samples/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		s, err := src.Sample(r.Context(), strings.TrimPrefix(r.URL.Path, "/samples/"))
		write(w, wire.FromSample(s), err)
	})
	mux.HandleFunc("/artifacts/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		a, err := src.Artifact(r.Context(), strings.TrimPrefix(r.URL.Path, "/artifacts/"))
		write(w, wire.FromArtifact(a), err)
	})
	mux.HandleFunc("/artifacts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		q := r.URL.Query()
		arts, err := src.Artifacts(r.Context(), lims.ArtifactQuery{SampleID: q.Get("sample"), StepNames: q["step"], Type: q.Get("type")})
		out := make([]wire.Artifact, 0, len(arts))
		for _, a := range arts {
			out = append(out, wire.FromArtifact(a))
		}
		write(w, out, err)
	})
	mux.HandleFunc("/processes", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		q := r.URL.Query()
		pq := lims.ProcessQuery{StepNames: q["step"], InputArtifactID: q.Get("input"), Attributes: map[string]string{}}
		for k, v := range q {
			if strings.HasPrefix(k, "attr.") {
				pq.Attributes[strings.TrimPrefix(k, "attr.")] = v[0]
			}
		}
		execs, err := src.Processes(r.Context(), pq)
		out := make([]wire.Execution, 0, len(execs))
		for _, e := range execs {
			out = append(out, wire.FromExecution(e))
		}
		write(w, out, err)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func source() *memory.Client {
	c := memory.New()
	c.AddSample(lims.Sample{ID: "S1", ApplicationTag: "WGSPCFC030", Attributes: lims.Attributes{"Passed Sequencing QC": true}})
	c.AddArtifact(lims.Artifact{ID: "A1", Type: "Analyte", SampleIDs: []string{"S1"}})
	c.AddArtifact(lims.Artifact{ID: "A2", Type: "Analyte", SampleIDs: []string{"S1"}, WorkflowStages: []string{"3999"}})
	c.AddExecution(lims.ProcessExecution{ID: "P1", StepName: "Prep", RunDate: memory.Day("2020-01-05"), Attributes: lims.Attributes{"Lot": "L7"}, InputIDs: []string{"A1"}, OutputIDs: []string{"A2"}})
	return c
}

func TestClientRoundTripsThroughGateway(t *testing.T) {
	var hits int64
	srv := gateway(t, source(), &hits)
	c, err := New(Options{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	s, err := c.Sample(ctx, "S1")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if s.ApplicationTag != "WGSPCFC030" {
		t.Fatalf("unexpected sample %+v", s)
	}
	if passed, _ := s.Attributes.Bool("Passed Sequencing QC"); !passed {
		t.Fatalf("attributes not decoded: %+v", s.Attributes)
	}

	arts, err := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1", StepNames: []string{"Prep", "Other"}, Type: "Analyte"})
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].ID != "A2" || arts[0].Parent == nil {
		t.Fatalf("unexpected artifacts %+v", arts)
	}
	if rd, ok := arts[0].RunDate(); !ok || !rd.Equal(time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected run date %v", rd)
	}
	if stage, _ := arts[0].Stage(); stage != "3999" {
		t.Fatalf("unexpected stage %q", stage)
	}

	execs, err := c.Processes(ctx, lims.ProcessQuery{StepNames: []string{"Prep"}, InputArtifactID: "A1", Attributes: map[string]string{"Lot": "L7"}})
	if err != nil {
		t.Fatalf("processes: %v", err)
	}
	if len(execs) != 1 || execs[0].ID != "P1" {
		t.Fatalf("unexpected executions %+v", execs)
	}
	if execs, _ := c.Processes(ctx, lims.ProcessQuery{Attributes: map[string]string{"Lot": "L8"}}); len(execs) != 0 {
		t.Fatalf("attribute filter ignored: %+v", execs)
	}
}

func TestClientCachesUntilInvalidated(t *testing.T) {
	var hits int64
	srv := gateway(t, source(), &hits)
	c, err := New(Options{BaseURL: srv.URL, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Artifact(ctx, "A2"); err != nil {
			t.Fatalf("artifact: %v", err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("expected one request, got %d", got)
	}
	c.Invalidate()
	if _, err := c.Artifact(ctx, "A2"); err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Fatalf("expected a fresh request after invalidation, got %d", got)
	}
}

func TestClientWithoutCacheAlwaysFetches(t *testing.T) {
	var hits int64
	srv := gateway(t, source(), &hits)
	c, _ := New(Options{BaseURL: srv.URL})
	for i := 0; i < 2; i++ {
		if _, err := c.Sample(context.Background(), "S1"); err != nil {
			t.Fatalf("sample: %v", err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Fatalf("expected two requests, got %d", got)
	}
}

func TestClientErrorMapping(t *testing.T) {
	var hits int64
	failing := source()
	srv := gateway(t, failing, &hits)
	c, _ := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.Sample(ctx, "missing")
	var dse *lims.DataSourceError
	if !errors.As(err, &dse) || !errors.Is(err, lims.ErrNotFound) {
		t.Fatalf("expected not-found DataSourceError, got %v", err)
	}

	failing.FailWith(errors.New("backend down"))
	_, err = c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1"})
	if !errors.As(err, &dse) || !strings.Contains(err.Error(), "backend down") {
		t.Fatalf("expected server error detail, got %v", err)
	}
}

func TestClientUnauthorizedAndBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "lab" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"S1"}`))
	}))
	defer srv.Close()

	bad, _ := New(Options{BaseURL: srv.URL, Username: "lab", Password: "wrong"})
	if _, err := bad.Sample(context.Background(), "S1"); !errors.Is(err, lims.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	good, _ := New(Options{BaseURL: srv.URL, Username: "lab", Password: "secret"})
	if s, err := good.Sample(context.Background(), "S1"); err != nil || s.ID != "S1" {
		t.Fatalf("expected sample, got %+v %v", s, err)
	}
}

func TestClientRejectsMalformedPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/processes":
			_, _ = w.Write([]byte(`[{"id":"P1","step":"Prep","run_date":"yesterday"}]`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()
	c, _ := New(Options{BaseURL: srv.URL})
	var dse *lims.DataSourceError
	if _, err := c.Processes(context.Background(), lims.ProcessQuery{}); !errors.As(err, &dse) {
		t.Fatalf("expected DataSourceError for bad date, got %v", err)
	}
	if _, err := c.Sample(context.Background(), "S1"); !errors.As(err, &dse) {
		t.Fatalf("expected DataSourceError for bad json, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
}

func TestClientSendsEveryStepName(t *testing.T) {
	src := source()
	src.AddArtifact(lims.Artifact{ID: "A3", Type: "Analyte", SampleIDs: []string{"S1"}})
	src.AddExecution(lims.ProcessExecution{ID: "P2", StepName: "QC", RunDate: memory.Day("2020-01-07"), InputIDs: []string{"A2"}, OutputIDs: []string{"A3"}})
	var hits int64
	srv := gateway(t, src, &hits)
	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	arts, err := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1", StepNames: []string{"Prep", "QC"}})
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(arts) != 2 || arts[0].ID != "A2" || arts[1].ID != "A3" {
		t.Fatalf("expected outputs of both steps, got %+v", arts)
	}
	execs, err := c.Processes(ctx, lims.ProcessQuery{StepNames: []string{"QC", "Prep"}})
	if err != nil {
		t.Fatalf("processes: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("expected executions of both steps, got %+v", execs)
	}
}
