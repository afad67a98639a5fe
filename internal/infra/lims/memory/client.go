// Package memory implements lims.Client over an in-process snapshot of LIMS
// history. It backs the fixture driver and the tests of every resolver.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"seqtrack/internal/infra/lims/wire"
	"seqtrack/pkg/lims"
)

// Compile-time contract assertion.
var _ lims.Client = (*Client)(nil)

// Client serves LIMS queries from memory. Artifacts are linked to their
// producing execution through the execution's output list.
type Client struct {
	mu         sync.RWMutex
	samples    map[string]lims.Sample
	artifacts  map[string]lims.Artifact
	executions map[string]lims.ProcessExecution
	execOrder  []string
	parentOf   map[string]string
	fail       error
	calls      int
}

// New returns an empty client.
func New() *Client {
	return &Client{
		samples:    make(map[string]lims.Sample),
		artifacts:  make(map[string]lims.Artifact),
		executions: make(map[string]lims.ProcessExecution),
		parentOf:   make(map[string]string),
	}
}

// Load builds a client from a wire.Document read from r.
func Load(r io.Reader) (*Client, error) {
	var doc wire.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	c := New()
	for _, s := range doc.Samples {
		c.AddSample(s.ToSample())
	}
	for _, a := range doc.Artifacts {
		art, err := a.ToArtifact()
		if err != nil {
			return nil, err
		}
		c.AddArtifact(art)
	}
	for _, e := range doc.Executions {
		exec, err := e.ToExecution()
		if err != nil {
			return nil, err
		}
		c.AddExecution(exec)
	}
	return c, nil
}

// LoadFile builds a client from the fixture at path.
func LoadFile(path string) (*Client, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied fixture path
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// AddSample registers a sample.
func (c *Client) AddSample(s lims.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[s.ID] = s
}

// AddArtifact registers an artifact. Parent and InputTo are derived from
// registered executions and ignored on input.
func (c *Client) AddArtifact(a lims.Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a.Parent = nil
	a.InputTo = nil
	c.artifacts[a.ID] = a
}

// AddExecution registers an execution and claims its outputs as children.
func (c *Client) AddExecution(e lims.ProcessExecution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.executions[e.ID]; !exists {
		c.execOrder = append(c.execOrder, e.ID)
	}
	c.executions[e.ID] = e
	for _, out := range e.OutputIDs {
		c.parentOf[out] = e.ID
	}
}

// FailWith makes every subsequent call fail with err; nil restores service.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

// Calls returns the number of queries served.
func (c *Client) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

// Sample returns the sample with id.
func (c *Client) Sample(_ context.Context, id string) (lims.Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("sample"); err != nil {
		return lims.Sample{}, err
	}
	s, ok := c.samples[id]
	if !ok {
		return lims.Sample{}, &lims.DataSourceError{Op: "sample " + id, Err: lims.ErrNotFound}
	}
	s.Attributes = s.Attributes.Clone()
	return s, nil
}

// Artifact returns the artifact with id, linked to its parent execution.
func (c *Client) Artifact(_ context.Context, id string) (lims.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("artifact"); err != nil {
		return lims.Artifact{}, err
	}
	if _, ok := c.artifacts[id]; !ok {
		return lims.Artifact{}, &lims.DataSourceError{Op: "artifact " + id, Err: lims.ErrNotFound}
	}
	return c.resolveArtifact(id), nil
}

// Artifacts returns the outputs of executions of the queried steps that are
// associated with the sample, in execution registration order.
func (c *Client) Artifacts(_ context.Context, q lims.ArtifactQuery) ([]lims.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("artifacts"); err != nil {
		return nil, err
	}
	var out []lims.Artifact
	for _, execID := range c.execOrder {
		exec := c.executions[execID]
		if len(q.StepNames) > 0 && !slices.Contains(q.StepNames, exec.StepName) {
			continue
		}
		for _, artID := range exec.OutputIDs {
			art, ok := c.artifacts[artID]
			if !ok {
				continue
			}
			if q.SampleID != "" && !art.HasSample(q.SampleID) {
				continue
			}
			if q.Type != "" && art.Type != q.Type {
				continue
			}
			out = append(out, c.resolveArtifact(artID))
		}
	}
	return out, nil
}

// Processes returns executions matching every populated field of q.
func (c *Client) Processes(_ context.Context, q lims.ProcessQuery) ([]lims.ProcessExecution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("processes"); err != nil {
		return nil, err
	}
	var out []lims.ProcessExecution
	for _, execID := range c.execOrder {
		exec := c.executions[execID]
		if len(q.StepNames) > 0 && !slices.Contains(q.StepNames, exec.StepName) {
			continue
		}
		if q.InputArtifactID != "" && !slices.Contains(exec.InputIDs, q.InputArtifactID) {
			continue
		}
		if !attributesMatch(exec.Attributes, q.Attributes) {
			continue
		}
		out = append(out, cloneExecution(exec))
	}
	return out, nil
}

func (c *Client) begin(op string) error {
	c.calls++
	if c.fail != nil {
		return &lims.DataSourceError{Op: op, Err: c.fail}
	}
	return nil
}

func (c *Client) resolveArtifact(id string) lims.Artifact {
	art := c.artifacts[id]
	art.Attributes = art.Attributes.Clone()
	if parentID, ok := c.parentOf[id]; ok {
		parent := cloneExecution(c.executions[parentID])
		art.Parent = &parent
	}
	art.InputTo = nil
	for _, execID := range c.execOrder {
		if slices.Contains(c.executions[execID].InputIDs, id) {
			art.InputTo = append(art.InputTo, execID)
		}
	}
	return art
}

func attributesMatch(have lims.Attributes, want map[string]string) bool {
	for k, v := range want {
		got, ok := have.String(k)
		if !ok || got != v {
			return false
		}
	}
	return true
}

func cloneExecution(e lims.ProcessExecution) lims.ProcessExecution {
	e.Attributes = e.Attributes.Clone()
	e.InputIDs = slices.Clone(e.InputIDs)
	e.OutputIDs = slices.Clone(e.OutputIDs)
	if e.RunDate != nil {
		d := *e.RunDate
		e.RunDate = &d
	}
	return e
}

// Day parses a YYYY-MM-DD date for fixtures and panics on malformed input.
func Day(s string) *time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(fmt.Sprintf("memory.Day(%q): %v", s, err))
	}
	return &d
}
