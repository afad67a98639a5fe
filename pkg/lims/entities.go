// Package lims defines the read-only view over an external laboratory
// information management system that the resolvers in seqtrack query:
// process executions, the artifacts they consume and produce, samples, and
// the Client capability that fetches them.
package lims

import (
	"slices"
	"time"
)

// ProcessExecution is a single run of a named protocol step against one or
// more artifacts. Executions are historical records and are never mutated.
type ProcessExecution struct {
	ID         string     `json:"id"`
	StepName   string     `json:"step"`
	RunDate    *time.Time `json:"run_date,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
	InputIDs   []string   `json:"inputs,omitempty"`
	OutputIDs  []string   `json:"outputs,omitempty"`
}

// Dated reports whether the execution carries a run date.
func (p ProcessExecution) Dated() bool { return p.RunDate != nil }

// Artifact is a tracked unit of material (tube, library, pool).
type Artifact struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Type           string            `json:"type,omitempty"`
	Attributes     Attributes        `json:"attributes,omitempty"`
	SampleIDs      []string          `json:"samples,omitempty"`
	WorkflowStages []string          `json:"workflow_stages,omitempty"`
	Parent         *ProcessExecution `json:"parent,omitempty"`
	InputTo        []string          `json:"input_to,omitempty"`
}

// HasSample reports whether the artifact is associated with the sample.
func (a Artifact) HasSample(sampleID string) bool {
	return slices.Contains(a.SampleIDs, sampleID)
}

// RunDate returns the run date of the producing execution, if any. An
// artifact without a parent execution has no resolvable run date.
func (a Artifact) RunDate() (time.Time, bool) {
	if a.Parent == nil || a.Parent.RunDate == nil {
		return time.Time{}, false
	}
	return *a.Parent.RunDate, true
}

// Stage returns the first workflow stage identifier recorded on the artifact.
func (a Artifact) Stage() (string, bool) {
	if len(a.WorkflowStages) == 0 {
		return "", false
	}
	return a.WorkflowStages[0], true
}

// Sample is the clinical unit being tracked.
type Sample struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	ApplicationTag string     `json:"application_tag,omitempty"`
	ArtifactID     string     `json:"artifact,omitempty"`
	Attributes     Attributes `json:"attributes,omitempty"`
}

// Ambiguity records that more than one plausible record was found where one
// was expected. Resolution proceeds with the documented tie-break; callers
// decide whether to surface it.
type Ambiguity struct {
	Kind     AmbiguityKind `json:"kind"`
	SampleID string        `json:"sample_id"`
	Detail   string        `json:"detail,omitempty"`
	Count    int           `json:"count"`
}

// AmbiguityKind classifies an Ambiguity.
type AmbiguityKind string

const (
	AmbiguityMultipleDeliveries AmbiguityKind = "multiple_deliveries"
	AmbiguityMultipleSequencing AmbiguityKind = "multiple_sequencing_runs"
	AmbiguityMultipleLots       AmbiguityKind = "multiple_lot_numbers"
)
