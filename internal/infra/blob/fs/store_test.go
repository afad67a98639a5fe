package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seqtrack/internal/archive/core"
)

func TestPutGetHeadList(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	info, err := s.Put(ctx, "reports/2024/03/x.jsonl", strings.NewReader("line\n"), core.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"count": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || len(info.ETag) != 64 || !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "reports/2024/03/x.jsonl", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := s.Head(ctx, "reports/2024/03/x.jsonl")
	if err != nil || head.Metadata["count"] != "1" || head.ContentType != "application/x-ndjson" {
		t.Fatalf("unexpected head %+v err=%v", head, err)
	}
	_, rc, err := s.Get(ctx, "reports/2024/03/x.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "line\n" {
		t.Fatalf("unexpected body %q", body)
	}
	if _, err := s.Put(ctx, "other/y.jsonl", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "reports/")
	if err != nil || len(list) != 1 || list[0].Key != "reports/2024/03/x.jsonl" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "other/y.jsonl" {
		t.Fatalf("expected sorted keys, got %+v", all)
	}
	url, err := s.PresignURL(ctx, "other/y.jsonl", core.SignedURLOptions{})
	if err != nil || !strings.HasSuffix(url, "/other/y.jsonl") {
		t.Fatalf("unexpected url %q err=%v", url, err)
	}
	if _, err := s.PresignURL(ctx, "other/y.jsonl", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := New(t.TempDir())
	for _, key := range []string{"", "/abs", "a/../../b", "x.meta"} {
		if _, err := s.Put(ctx, key, strings.NewReader("v"), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestMissingDeleteAndCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, _ := New(root)
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.Delete(ctx, "k"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "k"); ok {
		t.Fatalf("expected missing on second delete")
	}
	if err := os.WriteFile(filepath.Join(root, "bad.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Fatalf("expected corrupt sidecar error")
	}
}
