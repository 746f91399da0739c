package evaluation

import (
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/textsim"
)

// Weights of the best-approach score. Lower within-segment similarity and
// lower normalized time and cost score higher.
const (
	weightSuccess   = 0.4
	weightTime      = 0.15
	weightDiversity = 0.35
	weightCost      = 0.1
)

// PlanEntry lists the approaches evaluated for one component.
type PlanEntry struct {
	Component  model.Component
	Approaches []model.Approach
}

// Plan is the ordered component x approach layout of an evaluation.
// Its order breaks ties and orders the rendered report.
type Plan []PlanEntry

// PlanFromRegistry captures the declaration order of a registry.
func PlanFromRegistry(r *prompt.Registry) Plan {
	components := r.Components()
	plan := make(Plan, 0, len(components))
	for _, c := range components {
		plan = append(plan, PlanEntry{Component: c, Approaches: r.Approaches(c)})
	}
	return plan
}

// Metrics holds SegmentMetric values by segment, component and approach.
type Metrics map[string]map[model.Component]map[model.Approach]*model.SegmentMetric

// Get returns one metric, or nil when the tuple was not evaluated.
func (m Metrics) Get(segment string, component model.Component, approach model.Approach) *model.SegmentMetric {
	return m[segment][component][approach]
}

// Aggregate folds the candidates of run into one SegmentMetric per
// (segment, component, approach) of plan. Every tuple is present, with zero
// values when it saw no users.
func Aggregate(run *model.EvaluationRun, segments []string, plan Plan) Metrics {
	metrics := make(Metrics, len(segments))
	for _, s := range segments {
		metrics[s] = make(map[model.Component]map[model.Approach]*model.SegmentMetric, len(plan))
		for _, entry := range plan {
			byApproach := make(map[model.Approach]*model.SegmentMetric, len(entry.Approaches))
			for _, a := range entry.Approaches {
				byApproach[a] = &model.SegmentMetric{}
			}
			metrics[s][entry.Component] = byApproach
		}
	}

	for _, user := range run.Users {
		for _, c := range user.Candidates {
			m := metrics.Get(user.Segment, c.Component, c.Approach)
			if m == nil {
				continue
			}
			m.TotalUsers++
			if !c.Success {
				continue
			}
			m.Successes++
			m.AvgResponseTime += c.ResponseTime.Seconds()
			m.AvgCost += c.EstimatedCost
			if c.OutputText != "" {
				m.Outputs = append(m.Outputs, c.OutputText)
			}
		}
	}

	for _, byComponent := range metrics {
		for _, byApproach := range byComponent {
			for _, m := range byApproach {
				if m.Successes == 0 {
					m.AvgResponseTime = 0
					m.AvgCost = 0
					continue
				}
				m.SuccessRate = float64(m.Successes) / float64(m.TotalUsers)
				m.AvgResponseTime /= float64(m.Successes)
				m.AvgCost /= float64(m.Successes)
				m.WithinSegmentSimilarity = textsim.MeanPairwise(m.Outputs)
			}
		}
	}
	return metrics
}

// SegmentPair is the cross-segment similarity of two segments.
type SegmentPair struct {
	A          string
	B          string
	Similarity float64
}

// CrossSimilarity holds segment pairs by component and approach.
type CrossSimilarity map[model.Component]map[model.Approach][]SegmentPair

// CrossSegmentSimilarity compares the outputs of every unordered pair of
// segments that both produced output for a (component, approach). Pairs are
// listed in segment order. A tuple with fewer than two such segments has no
// pairs.
func CrossSegmentSimilarity(metrics Metrics, segments []string, plan Plan) CrossSimilarity {
	cross := make(CrossSimilarity, len(plan))
	for _, entry := range plan {
		cross[entry.Component] = make(map[model.Approach][]SegmentPair, len(entry.Approaches))
		for _, a := range entry.Approaches {
			var qualifying []string
			for _, s := range segments {
				if m := metrics.Get(s, entry.Component, a); m != nil && len(m.Outputs) > 0 {
					qualifying = append(qualifying, s)
				}
			}

			var pairs []SegmentPair
			for i := 0; i < len(qualifying); i++ {
				for j := i + 1; j < len(qualifying); j++ {
					left := metrics.Get(qualifying[i], entry.Component, a).Outputs
					right := metrics.Get(qualifying[j], entry.Component, a).Outputs
					pairs = append(pairs, SegmentPair{
						A:          qualifying[i],
						B:          qualifying[j],
						Similarity: textsim.MeanCross(left, right),
					})
				}
			}
			cross[entry.Component][a] = pairs
		}
	}
	return cross
}

// BestApproaches maps segment and component to the chosen approach. An empty
// approach means no approach succeeded.
type BestApproaches map[string]map[model.Component]model.Approach

// SelectBestApproaches picks one approach per (segment, component) among
// those with a non-zero success rate.
//
// A single qualifier wins outright. Otherwise each qualifier scores
//
//	0.4*success + 0.15*(1-time/maxTime) + 0.35*(1-withinSimilarity) + 0.1*(1-cost/maxCost)
//
// where a zero maximum normalizes by 1, and the first approach in plan order
// wins ties. The result depends only on its inputs.
func SelectBestApproaches(metrics Metrics, segments []string, plan Plan) BestApproaches {
	best := make(BestApproaches, len(segments))
	for _, s := range segments {
		best[s] = make(map[model.Component]model.Approach, len(plan))
		for _, entry := range plan {
			best[s][entry.Component] = bestFor(metrics, s, entry)
		}
	}
	return best
}

func bestFor(metrics Metrics, segment string, entry PlanEntry) model.Approach {
	var valid []model.Approach
	for _, a := range entry.Approaches {
		if m := metrics.Get(segment, entry.Component, a); m != nil && m.SuccessRate > 0 {
			valid = append(valid, a)
		}
	}
	switch len(valid) {
	case 0:
		return ""
	case 1:
		return valid[0]
	}

	var maxTime, maxCost float64
	for _, a := range valid {
		m := metrics.Get(segment, entry.Component, a)
		maxTime = max(maxTime, m.AvgResponseTime)
		maxCost = max(maxCost, m.AvgCost)
	}
	if maxTime == 0 {
		maxTime = 1
	}
	if maxCost == 0 {
		maxCost = 1
	}

	chosen := valid[0]
	bestScore := 0.0
	for i, a := range valid {
		m := metrics.Get(segment, entry.Component, a)
		score := weightSuccess*m.SuccessRate +
			weightTime*(1-m.AvgResponseTime/maxTime) +
			weightDiversity*(1-m.WithinSegmentSimilarity) +
			weightCost*(1-m.AvgCost/maxCost)
		if i == 0 || score > bestScore {
			chosen = a
			bestScore = score
		}
	}
	return chosen
}
