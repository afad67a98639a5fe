// Package wire defines the JSON documents exchanged with the LIMS REST
// gateway. The fixture format read by the memory client is the same.
package wire

import (
	"fmt"
	"time"

	"seqtrack/pkg/lims"
)

// Execution is the wire form of a process execution. RunDate is kept as the
// LIMS renders it (date-only or RFC 3339).
type Execution struct {
	ID         string          `json:"id"`
	Step       string          `json:"step"`
	RunDate    string          `json:"run_date,omitempty"`
	Attributes lims.Attributes `json:"attributes,omitempty"`
	Inputs     []string        `json:"inputs,omitempty"`
	Outputs    []string        `json:"outputs,omitempty"`
}

// Artifact is the wire form of an artifact. Parent is embedded in full so a
// single request yields the producing execution.
type Artifact struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Type           string          `json:"type,omitempty"`
	Attributes     lims.Attributes `json:"attributes,omitempty"`
	Samples        []string        `json:"samples,omitempty"`
	WorkflowStages []string        `json:"workflow_stages,omitempty"`
	Parent         *Execution      `json:"parent,omitempty"`
	InputTo        []string        `json:"input_to,omitempty"`
}

// Sample is the wire form of a sample.
type Sample struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	ApplicationTag string          `json:"application_tag,omitempty"`
	Artifact       string          `json:"artifact,omitempty"`
	Attributes     lims.Attributes `json:"attributes,omitempty"`
}

// Document is a complete LIMS snapshot used as a fixture.
type Document struct {
	Samples    []Sample    `json:"samples"`
	Artifacts  []Artifact  `json:"artifacts"`
	Executions []Execution `json:"executions"`
}

// ToExecution converts the wire form into the domain type.
func (e Execution) ToExecution() (lims.ProcessExecution, error) {
	out := lims.ProcessExecution{
		ID:         e.ID,
		StepName:   e.Step,
		Attributes: e.Attributes,
		InputIDs:   e.Inputs,
		OutputIDs:  e.Outputs,
	}
	if e.RunDate != "" {
		d, err := lims.ParseDate(e.RunDate)
		if err != nil {
			return lims.ProcessExecution{}, fmt.Errorf("execution %s: %w", e.ID, err)
		}
		out.RunDate = &d
	}
	return out, nil
}

// ToArtifact converts the wire form into the domain type.
func (a Artifact) ToArtifact() (lims.Artifact, error) {
	out := lims.Artifact{
		ID:             a.ID,
		Name:           a.Name,
		Type:           a.Type,
		Attributes:     a.Attributes,
		SampleIDs:      a.Samples,
		WorkflowStages: a.WorkflowStages,
		InputTo:        a.InputTo,
	}
	if a.Parent != nil {
		parent, err := a.Parent.ToExecution()
		if err != nil {
			return lims.Artifact{}, fmt.Errorf("artifact %s: %w", a.ID, err)
		}
		out.Parent = &parent
	}
	return out, nil
}

// ToSample converts the wire form into the domain type.
func (s Sample) ToSample() lims.Sample {
	return lims.Sample{
		ID:             s.ID,
		Name:           s.Name,
		ApplicationTag: s.ApplicationTag,
		ArtifactID:     s.Artifact,
		Attributes:     s.Attributes,
	}
}

// FromExecution renders a domain execution in wire form.
func FromExecution(e lims.ProcessExecution) Execution {
	out := Execution{ID: e.ID, Step: e.StepName, Attributes: e.Attributes, Inputs: e.InputIDs, Outputs: e.OutputIDs}
	if e.RunDate != nil {
		out.RunDate = e.RunDate.UTC().Format(time.RFC3339)
	}
	return out
}

// FromArtifact renders a domain artifact in wire form.
func FromArtifact(a lims.Artifact) Artifact {
	out := Artifact{
		ID:             a.ID,
		Name:           a.Name,
		Type:           a.Type,
		Attributes:     a.Attributes,
		Samples:        a.SampleIDs,
		WorkflowStages: a.WorkflowStages,
		InputTo:        a.InputTo,
	}
	if a.Parent != nil {
		p := FromExecution(*a.Parent)
		out.Parent = &p
	}
	return out
}

// FromSample renders a domain sample in wire form.
func FromSample(s lims.Sample) Sample {
	return Sample{ID: s.ID, Name: s.Name, ApplicationTag: s.ApplicationTag, Artifact: s.ArtifactID, Attributes: s.Attributes}
}
