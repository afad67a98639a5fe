package catalog

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Load reads a catalog document (YAML, JSON or TOML, chosen by extension)
// from path. An empty path selects the built-in V1 catalog. The loaded
// catalog is validated before it is returned.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return V1(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := v.Unmarshal(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	normalizeWorkflowKeys(&cat)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &cat, nil
}

// viper folds map keys to lower case; workflow names are case-sensitive.
func normalizeWorkflowKeys(c *Catalog) {
	for phase, byWorkflow := range c.LibrarySize {
		fixed := make(map[Workflow]SizeConfig, len(byWorkflow))
		for wf, cfg := range byWorkflow {
			switch strings.ToLower(string(wf)) {
			case strings.ToLower(string(WorkflowTwist)):
				wf = WorkflowTwist
			case strings.ToLower(string(WorkflowSureSelect)):
				wf = WorkflowSureSelect
			}
			fixed[wf] = cfg
		}
		c.LibrarySize[phase] = fixed
	}
}

// Validate reports every structural problem in the catalog.
func (c *Catalog) Validate() error {
	var result *multierror.Error
	if c == nil {
		return fmt.Errorf("catalog is nil")
	}
	if strings.TrimSpace(c.Version) == "" {
		result = multierror.Append(result, fmt.Errorf("version is required"))
	}
	for _, ev := range Events {
		cfg, ok := c.Events[ev]
		if !ok || len(cfg.Steps) == 0 {
			result = multierror.Append(result, fmt.Errorf("event %s has no steps", ev))
			continue
		}
		for i, s := range cfg.Steps {
			if strings.TrimSpace(s.Step) == "" {
				result = multierror.Append(result, fmt.Errorf("event %s step %d has no name", ev, i))
			}
		}
	}
	for category, steps := range c.Methods {
		for i, s := range steps {
			if s.Step == "" || s.NumberAttribute == "" {
				result = multierror.Append(result, fmt.Errorf("method %s entry %d needs step and number_attribute", category, i))
			}
		}
	}
	if c.Defrosts.LotStep != "" || c.Defrosts.ConcentrationStep != "" {
		if c.Defrosts.LotStep == "" || c.Defrosts.LotAttribute == "" || c.Defrosts.ConcentrationStep == "" || c.Defrosts.ConcentrationAttribute == "" {
			result = multierror.Append(result, fmt.Errorf("defrosts: lot_step, lot_attribute, concentration_step and concentration_attribute are required together"))
		}
	}
	if c.FinalAmount.AmountStep != "" && (c.FinalAmount.AmountAttribute == "" || c.FinalAmount.ConcentrationStep == "") {
		result = multierror.Append(result, fmt.Errorf("final_amount: amount_attribute and concentration_step are required"))
	}
	for phase, byWorkflow := range c.LibrarySize {
		for wf, cfg := range byWorkflow {
			if len(cfg.SizeSteps) == 0 {
				result = multierror.Append(result, fmt.Errorf("library_size %s/%s has no size_steps", phase, wf))
			}
			switch wf {
			case WorkflowTwist:
				if len(cfg.StageAttributes) == 0 {
					result = multierror.Append(result, fmt.Errorf("library_size %s/%s needs stage_attributes", phase, wf))
				}
			case WorkflowSureSelect:
				if cfg.SizeAttribute == "" {
					result = multierror.Append(result, fmt.Errorf("library_size %s/%s needs size_attribute", phase, wf))
				}
			default:
				result = multierror.Append(result, fmt.Errorf("library_size %s: unknown workflow %q", phase, wf))
			}
		}
	}
	return result.ErrorOrNil()
}
