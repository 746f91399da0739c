package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// OverrideFile is the on-disk layout of a prompt override file:
//
//	templates:
//	  - component: executive_summary
//	    approach: zero_shot
//	    text: |
//	      Summarize {transaction_summary}
type OverrideFile struct {
	Templates []Override `yaml:"templates"`
}

// Override replaces or adds one template.
type Override struct {
	Component string `yaml:"component"`
	Approach  string `yaml:"approach"`
	Text      string `yaml:"text"`
}

// LoadOverrides reads a YAML override file and applies it to r.
func LoadOverrides(path string, r *Registry) error {
	// #nosec G304 - path comes from user configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read prompt overrides: %w", err)
	}
	return ApplyOverrides(raw, r)
}

// ApplyOverrides parses YAML override content and applies it to r.
func ApplyOverrides(raw []byte, r *Registry) error {
	var file OverrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse prompt overrides: %w", err)
	}

	for i, o := range file.Templates {
		t, err := NewTemplate(model.Component(o.Component), model.Approach(o.Approach), o.Text)
		if err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
		r.Add(t)
	}
	return nil
}
