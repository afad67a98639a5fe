package lims

import "context"

// ArtifactQuery selects output artifacts of executions of any of StepNames
// that touched SampleID, optionally restricted to an artifact Type.
type ArtifactQuery struct {
	SampleID  string
	StepNames []string
	Type      string
}

// ProcessQuery selects executions. Empty fields do not constrain the result.
type ProcessQuery struct {
	StepNames       []string
	InputArtifactID string
	Attributes      map[string]string
}

// Client is the capability the resolvers consume. Implementations must
// return transport or decoding failures as *DataSourceError, and an empty
// slice (not an error) for steps that never occurred.
type Client interface {
	Sample(ctx context.Context, id string) (Sample, error)
	Artifact(ctx context.Context, id string) (Artifact, error)
	Artifacts(ctx context.Context, q ArtifactQuery) ([]Artifact, error)
	Processes(ctx context.Context, q ProcessQuery) ([]ProcessExecution, error)
}
