package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"seqtrack/pkg/lims"
)

const fixture = `{
  "samples": [{"id": "S1", "application_tag": "WGSPCFC030", "attributes": {"Passed Sequencing QC": true}}],
  "artifacts": [
    {"id": "A0", "samples": ["S1"]},
    {"id": "A1", "type": "Analyte", "samples": ["S1"], "attributes": {"Concentration (nM)": 4.2}},
    {"id": "A2", "samples": ["S2"]}
  ],
  "executions": [
    {"id": "P1", "step": "Reception", "run_date": "2020-01-05", "inputs": ["A0"], "outputs": ["A1", "A2"], "attributes": {"lot": "L1"}}
  ]
}`

func TestLoadAndQuery(t *testing.T) {
	c, err := Load(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()

	arts, err := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1", StepNames: []string{"Reception"}})
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].ID != "A1" {
		t.Fatalf("expected only A1, got %+v", arts)
	}
	if arts[0].Parent == nil || arts[0].Parent.ID != "P1" || arts[0].Parent.RunDate == nil {
		t.Fatalf("expected parent P1 with run date, got %+v", arts[0].Parent)
	}
	if none, _ := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1", StepNames: []string{"Never ran"}}); len(none) != 0 {
		t.Fatalf("unknown steps must yield nothing")
	}
	if typed, _ := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1", StepNames: []string{"Reception"}, Type: "ResultFile"}); len(typed) != 0 {
		t.Fatalf("type filter not applied")
	}

	in, err := c.Artifact(ctx, "A0")
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if in.Parent != nil || len(in.InputTo) != 1 || in.InputTo[0] != "P1" {
		t.Fatalf("unexpected lineage for A0: %+v", in)
	}

	procs, err := c.Processes(ctx, lims.ProcessQuery{InputArtifactID: "A0", Attributes: map[string]string{"lot": "L1"}})
	if err != nil || len(procs) != 1 {
		t.Fatalf("expected one process, got %v %v", procs, err)
	}
	if procs, _ := c.Processes(ctx, lims.ProcessQuery{Attributes: map[string]string{"lot": "L2"}}); len(procs) != 0 {
		t.Fatalf("attribute filter not applied")
	}
}

func TestNotFoundAndFailure(t *testing.T) {
	c := New()
	ctx := context.Background()
	_, err := c.Sample(ctx, "missing")
	var dse *lims.DataSourceError
	if !errors.As(err, &dse) || !errors.Is(err, lims.ErrNotFound) {
		t.Fatalf("expected not found data source error, got %v", err)
	}
	c.FailWith(errors.New("boom"))
	if _, err := c.Artifacts(ctx, lims.ArtifactQuery{SampleID: "S1"}); !errors.As(err, &dse) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if c.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", c.Calls())
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	c := New()
	c.AddArtifact(lims.Artifact{ID: "A1", SampleIDs: []string{"S1"}, Attributes: lims.Attributes{"k": "v"}})
	c.AddExecution(lims.ProcessExecution{ID: "P1", StepName: "X", RunDate: Day("2020-01-01"), OutputIDs: []string{"A1"}})
	ctx := context.Background()
	a, _ := c.Artifact(ctx, "A1")
	a.Attributes["k"] = "mutated"
	*a.Parent.RunDate = a.Parent.RunDate.AddDate(1, 0, 0)
	b, _ := c.Artifact(ctx, "A1")
	if v, _ := b.Attributes.String("k"); v != "v" {
		t.Fatalf("attributes leaked mutation")
	}
	if b.Parent.RunDate.Year() != 2020 {
		t.Fatalf("run date leaked mutation")
	}
}
