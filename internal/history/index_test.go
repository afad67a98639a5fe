package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"seqtrack/internal/infra/lims/memory"
	"seqtrack/pkg/lims"
)

func seed() *memory.Client {
	c := memory.New()
	c.AddArtifact(lims.Artifact{ID: "A1", SampleIDs: []string{"S1"}})
	c.AddArtifact(lims.Artifact{ID: "A2", SampleIDs: []string{"S1"}})
	c.AddArtifact(lims.Artifact{ID: "A3", SampleIDs: []string{"S1"}})
	c.AddArtifact(lims.Artifact{ID: "A4", SampleIDs: []string{"S1"}})
	c.AddExecution(lims.ProcessExecution{ID: "P2", StepName: "Step B", RunDate: memory.Day("2020-01-10"), OutputIDs: []string{"A2"}})
	c.AddExecution(lims.ProcessExecution{ID: "P1", StepName: "Step A", RunDate: memory.Day("2020-01-05"), OutputIDs: []string{"A1"}})
	c.AddExecution(lims.ProcessExecution{ID: "P3", StepName: "Step A", OutputIDs: []string{"A3"}})
	c.AddExecution(lims.ProcessExecution{ID: "P4", StepName: "Step C", RunDate: memory.Day("2020-01-10"), OutputIDs: []string{"A4"}})
	return c
}

func TestFindOrdersByCandidateStepThenResponse(t *testing.T) {
	ix := New(seed())
	occs, err := ix.Find(context.Background(), "S1", []string{"Step A", "Step B", "Never"}, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	var ids []string
	for _, o := range occs {
		ids = append(ids, o.Artifact.ID)
	}
	if len(ids) != 3 || ids[0] != "A1" || ids[1] != "A3" || ids[2] != "A2" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestFindNoStepsOrNoSampleIsEmpty(t *testing.T) {
	c := seed()
	ix := New(c)
	before := c.Calls()
	if occs, err := ix.Find(context.Background(), "S1", nil, ""); err != nil || occs != nil {
		t.Fatalf("expected nil result, got %v %v", occs, err)
	}
	if occs, err := ix.Find(context.Background(), "", []string{"Step A"}, ""); err != nil || occs != nil {
		t.Fatalf("expected nil result, got %v %v", occs, err)
	}
	if c.Calls() != before {
		t.Fatalf("empty queries must not reach the LIMS")
	}
}

func TestFindDeduplicatesRepeatedSteps(t *testing.T) {
	ix := New(seed())
	occs, err := ix.Find(context.Background(), "S1", []string{"Step B", "Step B"}, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("expected duplicate (run date, artifact) pair to collapse, got %d", len(occs))
	}
}

func TestFindPropagatesDataSourceError(t *testing.T) {
	c := seed()
	c.FailWith(errors.New("503"))
	_, err := New(c).Find(context.Background(), "S1", []string{"Step A"}, "")
	var dse *lims.DataSourceError
	if !errors.As(err, &dse) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}

func TestMostRecentAndEarliestSkipUndated(t *testing.T) {
	ix := New(seed())
	occs, _ := ix.Find(context.Background(), "S1", []string{"Step A", "Step B"}, "")

	latest, ok := ix.MostRecent(occs)
	if !ok || latest.Artifact.ID != "A2" {
		t.Fatalf("expected A2 as most recent, got %+v", latest)
	}
	first, ok := ix.Earliest(occs)
	if !ok || first.Artifact.ID != "A1" {
		t.Fatalf("expected A1 as earliest, got %+v", first)
	}

	undatedOnly := []Occurrence{{Artifact: lims.Artifact{ID: "x"}, Execution: lims.ProcessExecution{ID: "P"}}}
	if _, ok := MostRecent(undatedOnly, TieFirstSeen); ok {
		t.Fatalf("undated occurrences must not be selected")
	}
	if _, ok := Earliest(nil, TieFirstSeen); ok {
		t.Fatalf("empty input must select nothing")
	}
}

func TestOrderingProperties(t *testing.T) {
	dates := []string{"2021-03-01", "", "2020-12-31", "2021-03-01", "2019-07-04"}
	var execs []lims.ProcessExecution
	for i, d := range dates {
		e := lims.ProcessExecution{ID: string(rune('a' + i))}
		if d != "" {
			e.RunDate = memory.Day(d)
		}
		execs = append(execs, e)
	}
	latest, ok := MostRecentExecution(execs, TieFirstSeen)
	if !ok {
		t.Fatalf("expected a result")
	}
	earliest, _ := EarliestExecution(execs, TieFirstSeen)
	for _, e := range execs {
		if e.RunDate == nil {
			continue
		}
		if e.RunDate.After(*latest.RunDate) {
			t.Fatalf("most recent %v is older than %v", latest.RunDate, e.RunDate)
		}
		if e.RunDate.Before(*earliest.RunDate) {
			t.Fatalf("earliest %v is newer than %v", earliest.RunDate, e.RunDate)
		}
	}
	if latest.ID != "a" {
		t.Fatalf("first seen must win the tie, got %s", latest.ID)
	}
}

func TestTieBreakPolicies(t *testing.T) {
	day := memory.Day("2020-01-10")
	occs := []Occurrence{
		{Artifact: lims.Artifact{ID: "late"}, Execution: lims.ProcessExecution{ID: "P9", RunDate: day}},
		{Artifact: lims.Artifact{ID: "early"}, Execution: lims.ProcessExecution{ID: "P1", RunDate: day}},
	}
	if got, _ := MostRecent(occs, TieFirstSeen); got.Execution.ID != "P9" {
		t.Fatalf("first seen should keep P9, got %s", got.Execution.ID)
	}
	if got, _ := MostRecent(occs, TieExecutionID); got.Execution.ID != "P1" {
		t.Fatalf("execution id should keep P1, got %s", got.Execution.ID)
	}
	if got, _ := Earliest(occs, TieExecutionID); got.Execution.ID != "P1" {
		t.Fatalf("execution id should keep P1 for earliest, got %s", got.Execution.ID)
	}
	sorted := SortNewestFirst(occs, TieExecutionID)
	if sorted[0].Execution.ID != "P1" {
		t.Fatalf("sort must honour tie break, got %s", sorted[0].Execution.ID)
	}
}

func TestSortNewestFirstDropsUndated(t *testing.T) {
	occs := []Occurrence{
		{Execution: lims.ProcessExecution{ID: "old", RunDate: memory.Day("2020-01-01")}},
		{Execution: lims.ProcessExecution{ID: "undated"}},
		{Execution: lims.ProcessExecution{ID: "new", RunDate: memory.Day("2021-01-01")}},
	}
	sorted := SortNewestFirst(occs, TieFirstSeen)
	if len(sorted) != 2 || sorted[0].Execution.ID != "new" || sorted[1].Execution.ID != "old" {
		t.Fatalf("unexpected sort %+v", sorted)
	}
}

func TestExecutionsDistinct(t *testing.T) {
	run := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := lims.ProcessExecution{ID: "P1", RunDate: &run}
	occs := []Occurrence{{Artifact: lims.Artifact{ID: "A"}, Execution: exec}, {Artifact: lims.Artifact{ID: "B"}, Execution: exec}}
	if got := Executions(occs); len(got) != 1 {
		t.Fatalf("expected one distinct execution, got %d", len(got))
	}
}

func TestParseTieBreak(t *testing.T) {
	for in, want := range map[string]TieBreak{"": TieFirstSeen, "first_seen": TieFirstSeen, "EXECUTION_ID": TieExecutionID} {
		got, err := ParseTieBreak(in)
		if err != nil || got != want {
			t.Fatalf("ParseTieBreak(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTieBreak("random"); err == nil {
		t.Fatalf("expected error")
	}
	if TieExecutionID.String() != "execution_id" {
		t.Fatalf("unexpected string %s", TieExecutionID)
	}
}
