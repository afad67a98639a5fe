package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"seqtrack/internal/archive/core"
	memblob "seqtrack/internal/infra/blob/memory"
	s3blob "seqtrack/internal/infra/blob/s3"
)

type record struct {
	SampleID string `json:"sample_id"`
	Days     int    `json:"days,omitempty"`
}

func fixedArchive(store core.Store) *Archive {
	at := time.Date(2024, time.May, 17, 15, 4, 0, 0, time.FixedZone("CET", 3600))
	return New(store, WithClock(func() time.Time { return at }), WithIDGenerator(func() string { return "batch-1" }))
}

func TestExportWritesJSONLines(t *testing.T) {
	ctx := context.Background()
	stores := map[string]core.Store{"memory": memblob.New(), "s3": s3blob.NewMockForTests()}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			a := fixedArchive(store)
			exp, err := a.Export(ctx, "v1", record{SampleID: "ACC1", Days: 3}, record{SampleID: "ACC2"})
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if exp.Key != "reports/2024/05/batch-1.jsonl" || exp.Count != 2 || exp.CatalogVersion != "v1" || exp.ID != "batch-1" {
				t.Fatalf("unexpected export %+v", exp)
			}
			if exp.CreatedAt.Location() != time.UTC {
				t.Fatalf("expected UTC timestamp, got %v", exp.CreatedAt)
			}
			info, err := store.Head(ctx, exp.Key)
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if info.Metadata[MetaCount] != "2" || info.Metadata[MetaCatalogVersion] != "v1" || info.Metadata[MetaBatchID] != "batch-1" {
				t.Fatalf("unexpected metadata %+v", info.Metadata)
			}
			var got []record
			err = a.Read(ctx, exp.Key, func(raw json.RawMessage) error {
				var r record
				if err := json.Unmarshal(raw, &r); err != nil {
					return err
				}
				got = append(got, r)
				return nil
			})
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 2 || got[0].SampleID != "ACC1" || got[0].Days != 3 || got[1].SampleID != "ACC2" {
				t.Fatalf("unexpected records %+v", got)
			}
			batches, err := a.Batches(ctx, "2024/05")
			if err != nil || len(batches) != 1 {
				t.Fatalf("unexpected batches %+v err=%v", batches, err)
			}
		})
	}
}

func TestExportRejectsEmptyAndDuplicate(t *testing.T) {
	ctx := context.Background()
	a := fixedArchive(memblob.New())
	if _, err := a.Export(ctx, "v1"); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if _, err := a.Export(ctx, "v1", record{SampleID: "A"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := a.Export(ctx, "v1", record{SampleID: "B"}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists for reused batch id, got %v", err)
	}
	if _, err := a.Export(ctx, "v1", func() {}); err == nil || !strings.Contains(err.Error(), "encode record 0") {
		t.Fatalf("expected encode error, got %v", err)
	}
}

func TestReadRejectsInvalidLine(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	if _, err := store.Put(ctx, "reports/bad.jsonl", strings.NewReader("{}\n\nnot json\n"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	a := New(store)
	n := 0
	err := a.Read(ctx, "reports/bad.jsonl", func(json.RawMessage) error { n++; return nil })
	if err == nil || !strings.Contains(err.Error(), "line 3") || n != 1 {
		t.Fatalf("expected line 3 error after one record, got n=%d err=%v", n, err)
	}
	if err := a.Read(ctx, "reports/missing.jsonl", func(json.RawMessage) error { return nil }); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	a := New(memblob.New())
	first, err := a.Export(ctx, "v1", record{SampleID: "A"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	second, err := a.Export(ctx, "v1", record{SampleID: "A"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if first.ID == second.ID || first.Key == second.Key {
		t.Fatalf("expected distinct batches: %+v %+v", first, second)
	}
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || store.Driver() != core.DriverFilesystem {
		t.Fatalf("default driver: %v %v", store, err)
	}
	a, err := Open(ctx, Config{Driver: core.DriverMemory})
	if err != nil || a.Driver() != core.DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	if _, err := a.URL(ctx, "k", time.Minute); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported url, got %v", err)
	}
	if _, err := OpenStore(ctx, Config{Driver: core.DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := OpenStore(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
