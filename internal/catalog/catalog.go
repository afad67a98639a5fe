// Package catalog holds the StepCatalog: the versioned lookup tables that map
// a logical laboratory event onto the concrete LIMS step names realizing it
// and onto the attribute keys carrying its dates, methods and measurements.
//
// A Catalog is plain data. It is injected into every resolver so that several
// LIMS schema versions can coexist and be tested independently.
package catalog

import (
	"fmt"
	"slices"
)

// Event names a logical sample lifecycle event.
type Event string

const (
	EventReceived  Event = "received"
	EventPrepared  Event = "prepared"
	EventSequenced Event = "sequenced"
	EventDelivered Event = "delivered"
)

// Events lists the lifecycle events in processing order.
var Events = []Event{EventReceived, EventPrepared, EventSequenced, EventDelivered}

// MethodCategory selects a method-number/method-version table.
type MethodCategory string

const (
	MethodPrep       MethodCategory = "prep"
	MethodSequencing MethodCategory = "sequencing"
	MethodDelivery   MethodCategory = "delivery"
)

// MethodCategories lists every method category.
var MethodCategories = []MethodCategory{MethodPrep, MethodSequencing, MethodDelivery}

// Workflow names a target-enrichment library workflow.
type Workflow string

const (
	WorkflowTwist      Workflow = "TWIST"
	WorkflowSureSelect Workflow = "SureSelect"
)

// HybPhase distinguishes pre- from post-hybridization library size.
type HybPhase string

const (
	PreHyb  HybPhase = "library_size_pre_hyb"
	PostHyb HybPhase = "library_size_post_hyb"
)

// StepAttribute pairs a step name with the attribute key relevant to it.
// Attribute may be empty when the step records no such attribute.
type StepAttribute struct {
	Step      string `mapstructure:"step" json:"step"`
	Attribute string `mapstructure:"attribute" json:"attribute,omitempty"`
}

// EventSteps configures the steps realizing one lifecycle event.
type EventSteps struct {
	Steps        []StepAttribute `mapstructure:"steps" json:"steps"`
	ArtifactType string          `mapstructure:"artifact_type" json:"artifact_type,omitempty"`
	// QCAttribute names the sample attribute that must be true before the
	// event is considered to have happened.
	QCAttribute string `mapstructure:"qc_attribute" json:"qc_attribute,omitempty"`
}

// MethodStep names the method number and version attributes of one step.
type MethodStep struct {
	Step             string `mapstructure:"step" json:"step"`
	NumberAttribute  string `mapstructure:"number_attribute" json:"number_attribute"`
	VersionAttribute string `mapstructure:"version_attribute" json:"version_attribute"`
}

// DefrostConfig drives concentration and defrost counting.
type DefrostConfig struct {
	LotStep                string   `mapstructure:"lot_step" json:"lot_step"`
	LotAttribute           string   `mapstructure:"lot_attribute" json:"lot_attribute"`
	ConcentrationStep      string   `mapstructure:"concentration_step" json:"concentration_step"`
	ConcentrationAttribute string   `mapstructure:"concentration_attribute" json:"concentration_attribute"`
	AppTags                []string `mapstructure:"app_tags" json:"app_tags"`
}

// AmountConfig drives final concentration and amount lookup.
type AmountConfig struct {
	AmountStep             string   `mapstructure:"amount_step" json:"amount_step"`
	AmountAttribute        string   `mapstructure:"amount_attribute" json:"amount_attribute"`
	ConcentrationStep      string   `mapstructure:"concentration_step" json:"concentration_step"`
	ConcentrationAttribute string   `mapstructure:"concentration_attribute" json:"concentration_attribute"`
	AppTags                []string `mapstructure:"app_tags" json:"app_tags"`
}

// MicrobialConfig drives microbial library concentration lookup.
type MicrobialConfig struct {
	ConcentrationStep      string `mapstructure:"concentration_step" json:"concentration_step"`
	ConcentrationAttribute string `mapstructure:"concentration_attribute" json:"concentration_attribute"`
	AppTag                 string `mapstructure:"app_tag" json:"app_tag"`
}

// SizeConfig drives library size lookup for one workflow and phase.
type SizeConfig struct {
	SizeSteps []string `mapstructure:"size_steps" json:"size_steps"`
	// StageAttributes maps a workflow stage identifier to the size attribute
	// recorded at that stage (TWIST).
	StageAttributes map[string]string `mapstructure:"stage_attributes" json:"stage_attributes,omitempty"`
	// SizeAttribute is read directly off the size step output (SureSelect).
	SizeAttribute string   `mapstructure:"size_attribute" json:"size_attribute,omitempty"`
	AppTags       []string `mapstructure:"app_tags" json:"app_tags,omitempty"`
}

// SampleAttributes names sample-level attribute keys.
type SampleAttributes struct {
	ApplicationTag string `mapstructure:"application_tag" json:"application_tag"`
	CaptureKit     string `mapstructure:"capture_kit" json:"capture_kit"`
	// Report maps a sample report field onto the sample attribute copied
	// into it verbatim.
	Report map[string]string `mapstructure:"report" json:"report,omitempty"`
}

// Catalog is one version of the step tables.
type Catalog struct {
	Version          string                                `mapstructure:"version" json:"version"`
	Events           map[Event]EventSteps                  `mapstructure:"events" json:"events"`
	Methods          map[MethodCategory][]MethodStep       `mapstructure:"methods" json:"methods"`
	MethodNames      map[string]string                     `mapstructure:"method_names" json:"method_names"`
	CaptureKit       []StepAttribute                       `mapstructure:"capture_kit" json:"capture_kit"`
	CaptureKitType   string                                `mapstructure:"capture_kit_artifact_type" json:"capture_kit_artifact_type,omitempty"`
	Defrosts         DefrostConfig                         `mapstructure:"defrosts" json:"defrosts"`
	FinalAmount      AmountConfig                          `mapstructure:"final_amount" json:"final_amount"`
	Microbial        MicrobialConfig                       `mapstructure:"microbial" json:"microbial"`
	LibrarySize      map[HybPhase]map[Workflow]SizeConfig  `mapstructure:"library_size" json:"library_size"`
	SampleAttributes SampleAttributes                      `mapstructure:"sample_attributes" json:"sample_attributes"`
}

// StepNames returns the step names realizing event in catalog order. Unknown
// events have no steps.
func (c *Catalog) StepNames(event Event) []string {
	if c == nil {
		return nil
	}
	cfg, ok := c.Events[event]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cfg.Steps))
	for _, s := range cfg.Steps {
		out = append(out, s.Step)
	}
	return out
}

// EventConfig returns the configuration of event.
func (c *Catalog) EventConfig(event Event) (EventSteps, bool) {
	if c == nil {
		return EventSteps{}, false
	}
	cfg, ok := c.Events[event]
	return cfg, ok
}

// DateAttribute returns the attribute key holding the explicit date recorded
// by step for event, or "" when the step records none.
func (c *Catalog) DateAttribute(event Event, step string) string {
	cfg, ok := c.EventConfig(event)
	if !ok {
		return ""
	}
	for _, s := range cfg.Steps {
		if s.Step == step {
			return s.Attribute
		}
	}
	return ""
}

// MethodSteps returns the method tables for category in catalog order.
func (c *Catalog) MethodSteps(category MethodCategory) []MethodStep {
	if c == nil {
		return nil
	}
	return c.Methods[category]
}

// MethodName returns the human-readable name of a method number.
func (c *Catalog) MethodName(number string) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.MethodNames[number]
	return name, ok
}

// Size returns the library size configuration for phase and workflow.
func (c *Catalog) Size(phase HybPhase, workflow Workflow) (SizeConfig, bool) {
	if c == nil {
		return SizeConfig{}, false
	}
	byWorkflow, ok := c.LibrarySize[phase]
	if !ok {
		return SizeConfig{}, false
	}
	cfg, ok := byWorkflow[workflow]
	return cfg, ok
}

// TagPrefixAllowed reports whether the first n characters of tag appear in
// allowed. Tags shorter than n never match.
func TagPrefixAllowed(tag string, n int, allowed []string) bool {
	if len(tag) < n {
		return false
	}
	return slices.Contains(allowed, tag[:n])
}

// ParseEvent validates a lifecycle event name.
func ParseEvent(s string) (Event, error) {
	for _, ev := range Events {
		if string(ev) == s {
			return ev, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// ParseMethodCategory validates a method category name.
func ParseMethodCategory(s string) (MethodCategory, error) {
	for _, c := range MethodCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown method category %q", s)
}
