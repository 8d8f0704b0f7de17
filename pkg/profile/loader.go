package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the top-level YAML document: a list of model profiles,
// the shape a user hand-writes for a search run.
type Document struct {
	Models []*ModelProfileSpec `yaml:"models"`
}

// Load reads and validates a profile document from path.
func Load(path string) ([]*ModelProfileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: reading %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile: parsing %s: %w", path, err)
	}

	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("profile: %s declares no models", path)
	}

	composing := make(map[string]bool)
	for _, m := range doc.Models {
		for _, c := range m.ComposingModels {
			composing[c] = true
		}
	}

	for _, m := range doc.Models {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		m.SetComposing(composing[m.ModelName])
	}

	if err := validateRequestRateConsistency(doc.Models); err != nil {
		return nil, err
	}

	return doc.Models, nil
}

// validateRequestRateConsistency enforces: if any profiled model uses
// request-rate, all must (a model-set-wide rule, not per-model).
func validateRequestRateConsistency(models []*ModelProfileSpec) error {
	var anyRequestRate, anyConcurrency bool
	for _, m := range models {
		if m.IsRequestRateSpecified() {
			anyRequestRate = true
		} else if len(m.Parameters.Concurrency) > 0 {
			anyConcurrency = true
		}
	}
	if anyRequestRate && anyConcurrency {
		return fmt.Errorf("profile: request_rate and concurrency cannot be mixed across models in the same run")
	}
	return nil
}
