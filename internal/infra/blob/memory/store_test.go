package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"seqtrack/internal/archive/core"
)

func TestPutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	md := map[string]string{"count": "2"}
	info, err := s.Put(ctx, "reports/2024/01/a.jsonl", strings.NewReader("{}\n{}\n"), core.PutOptions{ContentType: "application/x-ndjson", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["count"] = "mutated"
	if info.Size != 6 || info.ETag == "" || info.Metadata["count"] != "2" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "reports/2024/01/a.jsonl", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, "reports/2024/01/a.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}\n{}\n" || got.ContentType != "application/x-ndjson" {
		t.Fatalf("unexpected object %q %+v", body, got)
	}
	if _, err := s.Put(ctx, "reports/2024/02/b.jsonl", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	list, _ := s.List(ctx, "reports/2024/")
	if len(list) != 2 || list[0].Key != "reports/2024/01/a.jsonl" {
		t.Fatalf("unexpected list %+v", list)
	}
	list, _ = s.List(ctx, "reports/2024/02")
	if len(list) != 1 {
		t.Fatalf("expected prefix filter, got %+v", list)
	}
}

func TestMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	_, _ = s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{})
	if ok, _ := s.Delete(ctx, "k"); !ok {
		t.Fatalf("expected delete to report existing object")
	}
	if ok, _ := s.Delete(ctx, "k"); ok {
		t.Fatalf("expected second delete to report missing")
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestPutHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", strings.NewReader("v"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
