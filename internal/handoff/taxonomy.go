package handoff

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// taxonomyFile is the on-disk vocabulary format
type taxonomyFile struct {
	Playbooks []Playbook `yaml:"playbooks"`
	Urgencies []string   `yaml:"urgencies"`
}

// LoadTaxonomy reads a YAML vocabulary. An empty path returns the default.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return NewTaxonomy(nil, nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var f taxonomyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}

	for i, p := range f.Playbooks {
		if p.BehaviorPattern == "" || p.LikelyStage == "" || p.PlaybookFocus == "" {
			return nil, fmt.Errorf("taxonomy playbook %d: all fields are required", i)
		}
	}

	return NewTaxonomy(f.Playbooks, f.Urgencies), nil
}
