package lims

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a single-entity lookup the LIMS could not satisfy.
	ErrNotFound = errors.New("lims: not found")
	// ErrUnauthorized marks rejected LIMS credentials.
	ErrUnauthorized = errors.New("lims: unauthorized")
)

// DataSourceError reports a failed call into the external LIMS. It is never
// retried by seqtrack; operations are idempotent so callers may retry.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("lims %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// WrapSource wraps err as a DataSourceError unless it already is one.
func WrapSource(op string, err error) error {
	if err == nil {
		return nil
	}
	var dse *DataSourceError
	if errors.As(err, &dse) {
		return err
	}
	return &DataSourceError{Op: op, Err: err}
}

// LineageError reports a backward lineage walk that could not terminate.
type LineageError struct {
	SampleID string
	From     string
	Target   string
	Hops     int
	Reason   string
}

func (e *LineageError) Error() string {
	return fmt.Sprintf("lineage walk for %s from %q to %q aborted after %d hops: %s",
		e.SampleID, e.From, e.Target, e.Hops, e.Reason)
}

// DataConflictError reports mutually exclusive values recorded for a field
// that must be single-valued.
type DataConflictError struct {
	SampleID string
	Field    string
	Values   []string
}

func (e *DataConflictError) Error() string {
	return fmt.Sprintf("%s conflict for %s: %s", e.Field, e.SampleID, strings.Join(e.Values, " | "))
}
