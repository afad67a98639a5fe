package resolve

import (
	"context"
	"fmt"
	"time"

	"seqtrack/internal/catalog"
	"seqtrack/internal/history"
)

// Method identifies the protocol document used by the most recent execution
// of a method category.
type Method struct {
	Number      string    `json:"number"`
	Version     string    `json:"version,omitempty"`
	Name        string    `json:"name,omitempty"`
	Step        string    `json:"step"`
	ExecutionID string    `json:"execution_id"`
	RunDate     time.Time `json:"run_date"`
}

// String renders "<number>:<version> - <name>". The version part is dropped
// when unrecorded and the name part when the number is not in the catalog.
func (m Method) String() string {
	out := m.Number
	if m.Version != "" {
		out = fmt.Sprintf("%s:%s", out, m.Version)
	}
	if m.Name != "" {
		out = fmt.Sprintf("%s - %s", out, m.Name)
	}
	return out
}

type methodCandidate struct {
	occ history.Occurrence
	cfg catalog.MethodStep
}

// Method returns the method recorded by the most recent dated execution of
// any step configured for category. It returns nil when no execution is
// dated or when the most recent one records no method number; older
// executions are never consulted as a fallback.
func (r *Resolver) Method(ctx context.Context, sampleID string, category catalog.MethodCategory) (*Method, error) {
	var (
		occs  []history.Occurrence
		steps = make(map[string]catalog.MethodStep)
	)
	for _, ms := range r.catalog.MethodSteps(category) {
		found, err := r.index.Find(ctx, sampleID, []string{ms.Step}, "")
		if err != nil {
			return nil, err
		}
		if _, seen := steps[ms.Step]; !seen {
			steps[ms.Step] = ms
		}
		occs = append(occs, found...)
	}
	sorted := history.SortNewestFirst(occs, r.index.TieBreak())
	if len(sorted) == 0 {
		return nil, nil
	}
	latest := methodCandidate{occ: sorted[0], cfg: steps[sorted[0].Execution.StepName]}
	return latest.method(r.catalog), nil
}

func (c methodCandidate) method(cat *catalog.Catalog) *Method {
	attrs := c.occ.Execution.Attributes
	number, ok := attrs.String(c.cfg.NumberAttribute)
	if !ok {
		return nil
	}
	m := &Method{
		Number:      number,
		Step:        c.occ.Execution.StepName,
		ExecutionID: c.occ.Execution.ID,
	}
	m.RunDate, _ = c.occ.RunDate()
	if c.cfg.VersionAttribute != "" {
		m.Version, _ = attrs.String(c.cfg.VersionAttribute)
	}
	m.Name, _ = cat.MethodName(number)
	return m
}

// Methods resolves every method category for sampleID.
func (r *Resolver) Methods(ctx context.Context, sampleID string) (map[catalog.MethodCategory]*Method, error) {
	out := make(map[catalog.MethodCategory]*Method, len(catalog.MethodCategories))
	for _, cat := range catalog.MethodCategories {
		m, err := r.Method(ctx, sampleID, cat)
		if err != nil {
			return nil, err
		}
		out[cat] = m
	}
	return out, nil
}
