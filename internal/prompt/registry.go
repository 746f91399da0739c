// Package prompt holds the component x approach prompt templates used to
// generate report sections.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// legacyPlaceholder is accepted in override files and rewritten to the template field.
const legacyPlaceholder = "{transaction_summary}"

// Data is what a template is executed with.
type Data struct {
	TransactionSummary string
}

// Template is one prompt for a (component, approach) pair.
type Template struct {
	tmpl      *template.Template
	Component model.Component
	Approach  model.Approach
	// Text is the template source. Output similarity is measured against it.
	Text string
}

// NewTemplate parses a prompt template.
func NewTemplate(component model.Component, approach model.Approach, text string) (*Template, error) {
	if strings.TrimSpace(string(component)) == "" || strings.TrimSpace(string(approach)) == "" {
		return nil, common.InvalidArgumentf("template needs a component and an approach")
	}
	text = strings.ReplaceAll(text, legacyPlaceholder, "{{.TransactionSummary}}")

	tmpl, err := template.New(fmt.Sprintf("%s_%s", component, approach)).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s/%s: %w", component, approach, err)
	}
	return &Template{tmpl: tmpl, Component: component, Approach: approach, Text: text}, nil
}

// Render fills the template with a transaction summary.
func (t *Template) Render(summary string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, Data{TransactionSummary: summary}); err != nil {
		return "", fmt.Errorf("failed to execute template %s/%s: %w", t.Component, t.Approach, err)
	}
	return buf.String(), nil
}

// Registry maps components to their approaches in declaration order.
// Declaration order breaks ties during selection.
type Registry struct {
	templates  map[model.Component][]*Template
	components []model.Component
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[model.Component][]*Template)}
}

// Add registers a template. Re-adding a (component, approach) pair replaces
// the template in place without changing the order.
func (r *Registry) Add(t *Template) {
	list, ok := r.templates[t.Component]
	if !ok {
		r.components = append(r.components, t.Component)
	}
	for i, existing := range list {
		if existing.Approach == t.Approach {
			list[i] = t
			return
		}
	}
	r.templates[t.Component] = append(list, t)
}

// Components returns the registered components in declaration order.
func (r *Registry) Components() []model.Component {
	out := make([]model.Component, len(r.components))
	copy(out, r.components)
	return out
}

// Templates returns the templates of a component in declaration order.
func (r *Registry) Templates(component model.Component) []*Template {
	list := r.templates[component]
	out := make([]*Template, len(list))
	copy(out, list)
	return out
}

// Approaches returns the approach names of a component in declaration order.
func (r *Registry) Approaches(component model.Component) []model.Approach {
	list := r.templates[component]
	out := make([]model.Approach, len(list))
	for i, t := range list {
		out[i] = t.Approach
	}
	return out
}

// Get looks up one template.
func (r *Registry) Get(component model.Component, approach model.Approach) (*Template, bool) {
	for _, t := range r.templates[component] {
		if t.Approach == approach {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	n := 0
	for _, list := range r.templates {
		n += len(list)
	}
	return n
}

// Subset returns a registry restricted to the named components, in the order given.
func (r *Registry) Subset(components ...model.Component) (*Registry, error) {
	out := NewRegistry()
	for _, c := range components {
		list, ok := r.templates[c]
		if !ok {
			return nil, fmt.Errorf("%w: component %q", common.ErrNotFound, c)
		}
		for _, t := range list {
			out.Add(t)
		}
	}
	return out, nil
}

var builtin = []struct {
	component  model.Component
	approaches []model.Approach
}{
	{model.ComponentExecutiveSummary, []model.Approach{model.ApproachZeroShot, model.ApproachFewShot, model.ApproachChainOfThought}},
	{model.ComponentCashFlow, []model.Approach{model.ApproachChainOfThought}},
	{model.ComponentTransactionBehaviour, []model.Approach{model.ApproachChainOfThought}},
	{model.ComponentSavingsPosition, []model.Approach{model.ApproachZeroShot, model.ApproachFewShot, model.ApproachChainOfThought}},
	{model.ComponentRecommendations, []model.Approach{model.ApproachZeroShot, model.ApproachFewShot, model.ApproachChainOfThought}},
}

// Builtin returns every bundled template.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	for _, entry := range builtin {
		for _, approach := range entry.approaches {
			filename := fmt.Sprintf("templates/%s_%s.tmpl", entry.component, approach)
			raw, err := templateFS.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("failed to read template %s: %w", filename, err)
			}
			t, err := NewTemplate(entry.component, approach, string(raw))
			if err != nil {
				return nil, err
			}
			r.Add(t)
		}
	}
	return r, nil
}

// DefaultReportRegistry returns the components a per-user report is built from.
func DefaultReportRegistry() (*Registry, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	return all.Subset(model.ComponentExecutiveSummary, model.ComponentRecommendations)
}

// DefaultEvaluationRegistry returns the components a segment evaluation runs.
func DefaultEvaluationRegistry() (*Registry, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	return all.Subset(model.ComponentExecutiveSummary, model.ComponentCashFlow, model.ComponentTransactionBehaviour)
}
