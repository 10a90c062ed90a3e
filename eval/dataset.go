// Package eval runs question batches against the live chat UI, grades the
// captured answers, and persists per-run results.
package eval

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var defaultDataset []byte

// Example is one dataset entry: a question and its reference answer.
type Example struct {
	Question  string `yaml:"question" json:"question"`
	Reference string `yaml:"reference" json:"reference"`
}

// Dataset is a named collection of question/reference pairs.
type Dataset struct {
	Name     string    `yaml:"name" json:"name"`
	Examples []Example `yaml:"examples" json:"examples"`
}

// LoadDataset reads a dataset from path, or the embedded default when path
// is empty.
func LoadDataset(path string) (*Dataset, error) {
	raw := defaultDataset
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		raw = data
	}

	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(ds.Examples) == 0 {
		return nil, fmt.Errorf("dataset %q has no examples", ds.Name)
	}
	for i, ex := range ds.Examples {
		if ex.Question == "" {
			return nil, fmt.Errorf("dataset %q: example %d has no question", ds.Name, i)
		}
	}
	return &ds, nil
}
