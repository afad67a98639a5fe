// Package archive writes batches of sample reports as JSON-lines objects
// into an object store and reads them back.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"seqtrack/internal/archive/core"
	"seqtrack/internal/status"
)

// Prefix is the key prefix under which report batches are written.
const Prefix = "reports/"

// ContentType of archived batches.
const ContentType = "application/x-ndjson"

// Metadata keys set on every batch object.
const (
	MetaBatchID        = "batch-id"
	MetaCount          = "count"
	MetaCatalogVersion = "catalog-version"
)

// ErrEmptyBatch is returned when Export is called without records.
var ErrEmptyBatch = errors.New("archive: empty batch")

// Archive stores report batches.
type Archive struct {
	store core.Store
	now   func() time.Time
	newID func() string
}

// Option customizes an Archive.
type Option func(*Archive)

// WithClock overrides the time source used for keys and export records.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDGenerator overrides batch identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(a *Archive) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// New wraps store.
func New(store core.Store, opts ...Option) *Archive {
	a := &Archive{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Driver reports the backing store driver.
func (a *Archive) Driver() core.Driver { return a.store.Driver() }

// Key returns the object key of batch id created at t.
func Key(t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("%s%04d/%02d/%s.jsonl", Prefix, t.Year(), int(t.Month()), id)
}

// Export writes records as one JSON-lines object and returns the export
// record to store in the status database.
func (a *Archive) Export(ctx context.Context, catalogVersion string, records ...any) (status.Export, error) {
	if len(records) == 0 {
		return status.Export{}, ErrEmptyBatch
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return status.Export{}, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	created := a.now().UTC()
	id := a.newID()
	key := Key(created, id)
	_, err := a.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), core.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			MetaBatchID:        id,
			MetaCount:          strconv.Itoa(len(records)),
			MetaCatalogVersion: catalogVersion,
		},
	})
	if err != nil {
		return status.Export{}, fmt.Errorf("archive batch %s: %w", id, err)
	}
	return status.Export{ID: id, Key: key, Count: len(records), CatalogVersion: catalogVersion, CreatedAt: created}, nil
}

// Batches lists archived batches, oldest key first. A non-empty month
// ("2024/05") narrows the listing.
func (a *Archive) Batches(ctx context.Context, month string) ([]core.Info, error) {
	prefix := Prefix
	if month != "" {
		prefix += month + "/"
	}
	return a.store.List(ctx, prefix)
}

// Read decodes each line of the batch at key into fn.
func (a *Archive) Read(ctx context.Context, key string, fn func(json.RawMessage) error) error {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%s line %d: invalid json", key, line)
		}
		if err := fn(json.RawMessage(append([]byte(nil), raw...))); err != nil {
			return err
		}
	}
	return sc.Err()
}

// URL returns a download URL for key when the store can produce one.
func (a *Archive) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return a.store.PresignURL(ctx, key, core.SignedURLOptions{Method: "GET", Expiry: expiry})
}
