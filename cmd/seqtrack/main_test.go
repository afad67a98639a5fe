package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fixtureJSON = `{
  "samples": [
    {"id": "S1", "attributes": {"Sequencing Analysis": "EXOSXR", "Passed Sequencing QC": true, "customer": "cust000"}}
  ],
  "artifacts": [
    {"id": "R1-out", "samples": ["S1"]},
    {"id": "P1-out", "samples": ["S1"]},
    {"id": "H1-out", "samples": ["S1"]},
    {"id": "D1-out", "type": "Analyte", "samples": ["S1"]},
    {"id": "A1-out", "samples": ["S1"], "attributes": {"Size (bp)": 300}},
    {"id": "A2-out", "samples": ["S1"], "attributes": {"Size (bp)": 320}}
  ],
  "executions": [
    {"id": "R1", "step": "CG002 - Reception Control", "run_date": "2018-06-01",
     "attributes": {"date arrived at clinical genomics": "2018-05-30"}, "outputs": ["R1-out"]},
    {"id": "P1", "step": "CG002 - Aggregate QC (Library Validation)", "run_date": "2018-06-10", "outputs": ["P1-out"]},
    {"id": "H1", "step": "CG002 - Illumina Sequencing (HiSeq X)", "run_date": "2018-06-20",
     "attributes": {"Finish Date": "2018-06-21"}, "outputs": ["H1-out"]},
    {"id": "D1", "step": "CG002 - Delivery", "run_date": "2018-06-25",
     "attributes": {"Date delivered": "2018-06-26", "Method Document": "1060", "Method Version": "2"}, "outputs": ["D1-out"]},
    {"id": "A1", "step": "CG002 - Amplify Adapter-Ligated Library (SS XT)", "run_date": "2018-06-05", "outputs": ["A1-out"]},
    {"id": "A2", "step": "CG002 - Amplify Captured Libraries to Add Index Tags (SS XT)", "run_date": "2018-06-08", "outputs": ["A2-out"]}
  ]
}`

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	return newEnvWith(t, func(dir string) string {
		return "metrics:\n  textfile: " + filepath.Join(dir, "seqtrack.prom") + "\n"
	})
}

// newEnvWith writes the fixture and a config whose observability section
// is produced by observe.
func newEnvWith(t *testing.T, observe func(dir string) string) env {
	t.Helper()
	dir := t.TempDir()
	fixture := filepath.Join(dir, "lims.json")
	if err := os.WriteFile(fixture, []byte(fixtureJSON), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg := "lims:\n  driver: fixture\n  fixture: " + fixture +
		"\nstorage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "status.db") +
		"\narchive:\n  driver: fs\n  fs_root: " + filepath.Join(dir, "archive") +
		"\nlog:\n  level: error\n" + observe(dir)
	path := filepath.Join(dir, "seqtrack.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env{dir: dir, config: path}
}

func (e env) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := cli(append([]string{"--config", e.config}, args...), &out, &errOut)
	return out.String(), errOut.String(), code
}

// rows parses "key value" lines.
func rows(out string) map[string]string {
	m := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) == 2 {
			m[f[0]] = f[1]
		}
	}
	return m
}

func TestDatesCommand(t *testing.T) {
	e := newEnv(t)
	out, errOut, code := e.run(t, "dates", "S1")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	got := rows(out)
	if got["received"] != "2018-05-30" || got["delivered"] != "2018-06-26" || got["received_to_delivered"] != "27" {
		t.Fatalf("unexpected dates output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "seqtrack.prom")); err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}
}

func TestMethodCommand(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run(t, "method", "S1", "--category", "delivery")
	if code != exitOK || strings.TrimSpace(out) != "1060:2 - Raw data delivery" {
		t.Fatalf("unexpected delivery method %q (%d)", out, code)
	}
	out, _, code = e.run(t, "method", "S1", "--category", "prep")
	if code != exitOK || strings.TrimSpace(out) != missing {
		t.Fatalf("expected missing prep method, got %q (%d)", out, code)
	}
	if _, _, code := e.run(t, "method", "S1", "--category", "analysis"); code != exitFailure {
		t.Fatalf("expected failure for unknown category, got %d", code)
	}
}

func TestMetricsCommand(t *testing.T) {
	e := newEnv(t)
	out, errOut, code := e.run(t, "metrics", "S1")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	got := rows(out)
	if got["library_workflow"] != "SureSelect" || got["library_size_pre_hyb"] != "300" || got["nr_defrosts"] != missing {
		t.Fatalf("unexpected metrics output:\n%s", out)
	}
}

func TestReportCommand(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run(t, "report", "S1")
	if code != exitOK || !strings.Contains(out, `"sample_id":"S1"`) || !strings.Contains(out, `"library_size_post_hyb":320`) {
		t.Fatalf("unexpected report %q (%d)", out, code)
	}
	out, errOut, code := e.run(t, "report", "S1", "--archive")
	if code != exitOK || !strings.HasPrefix(out, "archived 1 reports to reports/") {
		t.Fatalf("unexpected archive output %q (%d): %s", out, code, errOut)
	}
	key := strings.TrimSpace(strings.TrimPrefix(out, "archived 1 reports to "))
	if _, err := os.Stat(filepath.Join(e.dir, "archive", filepath.FromSlash(key))); err != nil {
		t.Fatalf("expected archived object: %v", err)
	}
	if !strings.Contains(errOut, `"operation":"export_reports"`) {
		t.Fatalf("expected audit entry on stderr: %s", errOut)
	}
}

func TestTransferCommandPersists(t *testing.T) {
	e := newEnv(t)
	out, errOut, code := e.run(t, "transfer", "delivered", "S1")
	if code != exitOK || !strings.Contains(out, "updated:   S1") {
		t.Fatalf("unexpected first transfer %q (%d): %s", out, code, errOut)
	}
	out, _, code = e.run(t, "transfer", "delivered", "S1")
	if code != exitOK || !strings.Contains(out, "unchanged: S1") {
		t.Fatalf("expected unchanged on second run, got %q (%d)", out, code)
	}
}

func TestStatusCommandShowsStoredDates(t *testing.T) {
	e := newEnv(t)
	if _, errOut, code := e.run(t, "status", "S1"); code != exitFailure || !strings.Contains(errOut, "no stored status") {
		t.Fatalf("expected failure before any transfer, got %d: %s", code, errOut)
	}
	if _, errOut, code := e.run(t, "transfer", "delivered", "S1"); code != exitOK {
		t.Fatalf("transfer exit %d: %s", code, errOut)
	}
	out, errOut, code := e.run(t, "status", "S1")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	got := rows(out)
	if got["delivered"] != "2018-06-26" || got["received"] != missing || got["updated_at"] == "" {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestArchiveCommands(t *testing.T) {
	e := newEnv(t)
	out, errOut, code := e.run(t, "report", "S1", "--archive")
	if code != exitOK {
		t.Fatalf("report exit %d: %s", code, errOut)
	}
	key := strings.TrimSpace(strings.TrimPrefix(out, "archived 1 reports to "))
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		t.Fatalf("unexpected key %q", key)
	}

	out, errOut, code = e.run(t, "archive", "list")
	if code != exitOK || !strings.HasPrefix(out, key+" ") {
		t.Fatalf("unexpected list %q (%d): %s", out, code, errOut)
	}
	out, _, code = e.run(t, "archive", "list", parts[1]+"-"+parts[2])
	if code != exitOK || !strings.HasPrefix(out, key+" ") {
		t.Fatalf("expected batch in its month, got %q (%d)", out, code)
	}
	out, _, code = e.run(t, "archive", "list", "1999/01")
	if code != exitOK || out != "" {
		t.Fatalf("expected empty month, got %q (%d)", out, code)
	}

	out, errOut, code = e.run(t, "archive", "show", key)
	if code != exitOK || strings.Count(out, "\n") != 1 || !strings.Contains(out, `"sample_id":"S1"`) {
		t.Fatalf("unexpected show %q (%d): %s", out, code, errOut)
	}
	if _, _, code := e.run(t, "archive", "show", "reports/1999/01/absent.jsonl"); code != exitFailure {
		t.Fatalf("expected missing batch to fail, got %d", code)
	}

	out, _, code = e.run(t, "archive", "url", key)
	if code != exitOK || !strings.HasPrefix(out, "file://") || !strings.HasSuffix(strings.TrimSpace(out), parts[3]) {
		t.Fatalf("unexpected url %q (%d)", out, code)
	}

	out, errOut, code = e.run(t, "archive", "exports")
	if code != exitOK {
		t.Fatalf("exports exit %d: %s", code, errOut)
	}
	if f := strings.Fields(out); len(f) != 5 || f[1] != key || f[2] != "1" {
		t.Fatalf("unexpected exports %q", out)
	}
}

func TestTraceFileAndExpvarDriver(t *testing.T) {
	e := newEnvWith(t, func(dir string) string {
		return "metrics:\n  driver: expvar\ntrace:\n  file: " + filepath.Join(dir, "spans.jsonl") + "\n"
	})
	if _, errOut, code := e.run(t, "dates", "S1"); code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	raw, err := os.ReadFile(filepath.Join(e.dir, "spans.jsonl"))
	if err != nil {
		t.Fatalf("read spans: %v", err)
	}
	if !strings.Contains(string(raw), `"operation":"resolve_dates"`) || !strings.Contains(string(raw), `"status":"success"`) {
		t.Fatalf("unexpected spans %s", raw)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "seqtrack.prom")); !os.IsNotExist(err) {
		t.Fatalf("expected no prometheus textfile, got %v", err)
	}
}

func TestMissingSampleExitsWithLIMSCode(t *testing.T) {
	e := newEnv(t)
	_, errOut, code := e.run(t, "dates", "NOPE")
	if code != exitLIMS || !strings.Contains(errOut, "not found") {
		t.Fatalf("expected lims exit code, got %d: %s", code, errOut)
	}
}

func TestCatalogCommands(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := cli([]string{"catalog", "validate"}, &out, &errOut); code != exitOK || out.String() != "catalog v1 ok\n" {
		t.Fatalf("unexpected validate output %q (%d): %s", out.String(), code, errOut.String())
	}
	out.Reset()
	if code := cli([]string{"catalog", "show"}, &out, &errOut); code != exitOK || !strings.Contains(out.String(), `"version": "v1"`) {
		t.Fatalf("unexpected show output (%d)", code)
	}
	bad := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(bad, []byte("version: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code := cli([]string{"catalog", "validate", "--path", bad}, &out, &errOut); code != exitFailure {
		t.Fatalf("expected invalid catalog to fail, got %d", code)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := cli([]string{"frobnicate"}, &out, &errOut); code != exitFailure {
		t.Fatalf("expected failure, got %d", code)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var codes []int
	old, oldArgs := exitFunc, os.Args
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc, os.Args = old, oldArgs }()
	os.Args = []string{"seqtrack", "catalog", "validate"}
	main()
	if len(codes) != 1 || codes[0] != exitOK {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
