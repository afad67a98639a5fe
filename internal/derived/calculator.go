// Package derived computes composite sample metrics that combine several
// LIMS steps: defrost counts, final amounts, library sizes and capture kits.
//
// Every calculation is gated by application-tag allow-lists from the catalog
// and returns an empty value, never an error, when data is missing.
package derived

import (
	"context"
	"slices"
	"strings"
	"time"

	"seqtrack/internal/catalog"
	"seqtrack/internal/history"
	"seqtrack/internal/lineage"
	"seqtrack/pkg/lims"
)

// Defrosts is the concentration measured for a sample together with the
// number of times its reagent lot had been thawed by then.
type Defrosts struct {
	Concentration *float64         `json:"concentration,omitempty"`
	LotNumber     string           `json:"lot_number,omitempty"`
	Count         int              `json:"defrosts"`
	MeasuredAt    *time.Time       `json:"measured_at,omitempty"`
	Ambiguities   []lims.Ambiguity `json:"ambiguities,omitempty"`
}

// Empty reports whether no defrost record was produced.
func (d Defrosts) Empty() bool { return d.LotNumber == "" }

// FinalAmount is the final library concentration and the DNA amount that
// went into the library.
type FinalAmount struct {
	Amount        *float64 `json:"amount,omitempty"`
	Concentration *float64 `json:"concentration,omitempty"`
}

// Empty reports whether neither value is known.
func (f FinalAmount) Empty() bool { return f.Amount == nil && f.Concentration == nil }

// Calculator computes derived metrics.
type Calculator struct {
	catalog *catalog.Catalog
	walker  *lineage.Walker
}

// New constructs a Calculator.
func New(cat *catalog.Catalog, walker *lineage.Walker) *Calculator {
	return &Calculator{catalog: cat, walker: walker}
}

func (c *Calculator) client() lims.Client { return c.walker.Index().Client() }

// ConcentrationAndDefrosts reads the concentration of the latest
// concentration-step input and counts earlier or same-day runs of the lot
// step that used the same reagent lot. Lot fields recording several lots at
// once are unusable: the record is then empty and carries an ambiguity.
func (c *Calculator) ConcentrationAndDefrosts(ctx context.Context, appTag, sampleID string) (Defrosts, error) {
	cfg := c.catalog.Defrosts
	if !catalog.TagPrefixAllowed(appTag, 6, cfg.AppTags) {
		return Defrosts{}, nil
	}
	art, err := c.walker.LatestInputArtifact(ctx, cfg.ConcentrationStep, sampleID)
	if err != nil || art == nil || art.Parent == nil {
		return Defrosts{}, err
	}
	lot, ok := art.Parent.Attributes.String(cfg.LotAttribute)
	if !ok {
		return Defrosts{}, nil
	}
	if strings.ContainsAny(lot, ", ") {
		return Defrosts{Ambiguities: []lims.Ambiguity{{
			Kind:     lims.AmbiguityMultipleLots,
			SampleID: sampleID,
			Detail:   lot,
			Count:    len(strings.FieldsFunc(lot, func(r rune) bool { return r == ',' || r == ' ' })),
		}}}, nil
	}
	measured := art.Parent.RunDate
	if measured == nil {
		return Defrosts{}, nil
	}

	runs, err := c.client().Processes(ctx, lims.ProcessQuery{
		StepNames:  []string{cfg.LotStep},
		Attributes: map[string]string{cfg.LotAttribute: lot},
	})
	if err != nil {
		return Defrosts{}, lims.WrapSource("processes", err)
	}
	count := 0
	for _, run := range runs {
		if run.RunDate != nil && !run.RunDate.After(*measured) {
			count++
		}
	}
	at := *measured
	out := Defrosts{LotNumber: lot, Count: count, MeasuredAt: &at}
	if v, ok := art.Attributes.Float(cfg.ConcentrationAttribute); ok {
		out.Concentration = &v
	}
	return out, nil
}

// FinalConcentrationAndAmount reads the concentration of the latest
// concentration-step input, then walks back through its lineage to the
// artifact that entered the amount step and reads the amount there.
func (c *Calculator) FinalConcentrationAndAmount(ctx context.Context, appTag, sampleID string) (FinalAmount, error) {
	cfg := c.catalog.FinalAmount
	if !catalog.TagPrefixAllowed(appTag, 6, cfg.AppTags) {
		return FinalAmount{}, nil
	}
	art, err := c.walker.LatestInputArtifact(ctx, cfg.ConcentrationStep, sampleID)
	if err != nil || art == nil {
		return FinalAmount{}, err
	}
	var out FinalAmount
	if v, ok := art.Attributes.Float(cfg.ConcentrationAttribute); ok {
		out.Concentration = &v
	}
	if art.Parent == nil {
		return out, nil
	}
	amountArt, err := c.walker.WalkBackToStep(ctx, *art.Parent, cfg.AmountStep, sampleID)
	if err != nil {
		return FinalAmount{}, err
	}
	if amountArt != nil {
		if v, ok := amountArt.Attributes.Float(cfg.AmountAttribute); ok {
			out.Amount = &v
		}
	}
	return out, nil
}

// MicrobialLibraryConcentration returns the library concentration of
// microbial samples, recognized by characters 3 and 4 of the tag.
func (c *Calculator) MicrobialLibraryConcentration(ctx context.Context, appTag, sampleID string) (*float64, error) {
	cfg := c.catalog.Microbial
	if len(appTag) < 5 || cfg.AppTag == "" || appTag[3:5] != cfg.AppTag {
		return nil, nil
	}
	art, err := c.walker.LatestInputArtifact(ctx, cfg.ConcentrationStep, sampleID)
	if err != nil || art == nil {
		return nil, err
	}
	if v, ok := art.Attributes.Float(cfg.ConcentrationAttribute); ok {
		return &v, nil
	}
	return nil, nil
}

// LibrarySize returns the library fragment size measured in phase.
//
// TWIST: the latest output of the size step is located and, among the inputs
// of the execution that produced it, the sample's artifact whose workflow
// stage is configured supplies the size. SureSelect: the tag's first three
// characters must be allowed and the latest size-step output carries the
// size directly.
func (c *Calculator) LibrarySize(ctx context.Context, appTag, sampleID string, workflow catalog.Workflow, phase catalog.HybPhase) (*float64, error) {
	cfg, ok := c.catalog.Size(phase, workflow)
	if !ok {
		return nil, nil
	}
	switch workflow {
	case catalog.WorkflowTwist:
		out, err := c.walker.OutputArtifact(ctx, cfg.SizeSteps, sampleID, true)
		if err != nil || out == nil || out.Parent == nil {
			return nil, err
		}
		inputs, err := c.walker.InputArtifacts(ctx, *out.Parent)
		if err != nil {
			return nil, err
		}
		for _, in := range inputs {
			stage, ok := in.Stage()
			if !ok || !in.HasSample(sampleID) {
				continue
			}
			key, ok := cfg.StageAttributes[stage]
			if !ok {
				continue
			}
			if v, ok := in.Attributes.Float(key); ok {
				return &v, nil
			}
			return nil, nil
		}
	case catalog.WorkflowSureSelect:
		if !catalog.TagPrefixAllowed(appTag, 3, cfg.AppTags) {
			return nil, nil
		}
		out, err := c.walker.OutputArtifact(ctx, cfg.SizeSteps, sampleID, true)
		if err != nil || out == nil {
			return nil, err
		}
		if v, ok := out.Attributes.Float(cfg.SizeAttribute); ok {
			return &v, nil
		}
	}
	return nil, nil
}

// CaptureKit returns the capture kit used for sample. The sample attribute
// wins when set to anything but "NA"; otherwise kits recorded by the
// capture-kit steps are collected, from execution attributes first and from
// artifact attributes when no execution recorded one. Several distinct kits
// fail with a *lims.DataConflictError.
func (c *Calculator) CaptureKit(ctx context.Context, sample lims.Sample) (string, bool, error) {
	if kit, ok := sample.Attributes.String(c.catalog.SampleAttributes.CaptureKit); ok && kit != "NA" {
		return kit, true, nil
	}
	var kits []string
	add := func(k string) {
		if !slices.Contains(kits, k) {
			kits = append(kits, k)
		}
	}
	for _, sa := range c.catalog.CaptureKit {
		occs, err := c.walker.Index().Find(ctx, sample.ID, []string{sa.Step}, c.catalog.CaptureKitType)
		if err != nil {
			return "", false, err
		}
		found := collectKits(occs, sa.Attribute, func(o history.Occurrence) lims.Attributes { return o.Execution.Attributes })
		if len(found) == 0 {
			found = collectKits(occs, sa.Attribute, func(o history.Occurrence) lims.Attributes { return o.Artifact.Attributes })
		}
		for _, k := range found {
			add(k)
		}
	}
	switch len(kits) {
	case 0:
		return "", false, nil
	case 1:
		return kits[0], true, nil
	}
	slices.Sort(kits)
	return "", false, &lims.DataConflictError{SampleID: sample.ID, Field: "capture kit", Values: kits}
}

func collectKits(occs []history.Occurrence, key string, attrs func(history.Occurrence) lims.Attributes) []string {
	var out []string
	for _, o := range occs {
		if k, ok := attrs(o).String(key); ok && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
