// Package evaluation runs every prompt approach over the users of each
// segment and selects the best approach per segment and component.
package evaluation

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/scoring"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// ProfileSource returns the monthly profile of one user.
type ProfileSource interface {
	MonthlyProfile(ctx context.Context, userID string, year, month int) (*model.MonthlyProfile, error)
}

// RunStore persists finished evaluation runs.
type RunStore interface {
	SaveEvaluationRun(ctx context.Context, run *model.EvaluationRun) error
}

// Deps contains all dependencies required by the evaluator.
type Deps struct {
	// Profiles provides the per-user monthly aggregates.
	Profiles ProfileSource
	// Generator produces candidate text for a rendered prompt.
	Generator service.Generator
	// Registry lists the components and approaches to evaluate.
	Registry *prompt.Registry
	// Scorer rates successful candidates. Optional.
	Scorer *scoring.Scorer
	// Store persists the run. Optional.
	Store RunStore
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Profiles == nil {
		return fmt.Errorf("profile source dependency is required")
	}
	if d.Generator == nil {
		return fmt.Errorf("generator dependency is required")
	}
	if d.Registry == nil || d.Registry.Len() == 0 {
		return fmt.Errorf("prompt registry dependency is required")
	}
	return nil
}
