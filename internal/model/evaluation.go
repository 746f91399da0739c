package model

import (
	"time"
)

// Component names a section of the financial report.
type Component string

// Report components known to the prompt registry.
const (
	ComponentExecutiveSummary     Component = "executive_summary"
	ComponentCashFlow             Component = "cash_flow"
	ComponentTransactionBehaviour Component = "transaction_behaviour"
	ComponentSavingsPosition      Component = "savings_position"
	ComponentRecommendations      Component = "recommendations"
)

// Approach names a prompting strategy.
type Approach string

// Prompting approaches.
const (
	ApproachZeroShot       Approach = "zero_shot"
	ApproachFewShot        Approach = "few_shot"
	ApproachChainOfThought Approach = "chain_of_thought"
)

// DefaultApproach is used when no candidate produced a usable score.
const DefaultApproach = ApproachChainOfThought

// FlagSafe is the only ethics label that lets a candidate compete.
const FlagSafe = "Safe"

// UnusableSimilarity is assigned to empty or unsafe candidates so they lose
// every comparison against a real cosine value.
const UnusableSimilarity = -1.0

// EthicsVerdict is the highest-confidence label returned by the classifier.
type EthicsVerdict struct {
	Label      string
	Confidence float64
}

// IsSafe reports whether the verdict allows the candidate to compete.
func (v EthicsVerdict) IsSafe() bool {
	return v.Label == FlagSafe
}

// Score is the Candidate Scorer output for one generated text.
type Score struct {
	EthicalFlag     string  `json:"ethical_flag"`
	Confidence      float64 `json:"confidence"`
	SimilarityScore float64 `json:"similarity_score"`
}

// CandidateResult records one (user, component, approach) evaluation.
type CandidateResult struct {
	Component       Component     `json:"component"`
	Approach        Approach      `json:"approach"`
	EthicalFlag     string        `json:"ethical_flag,omitempty"`
	OutputText      string        `json:"output_text"`
	Error           string        `json:"error,omitempty"`
	ResponseTime    time.Duration `json:"response_time"`
	Confidence      float64       `json:"confidence"`
	SimilarityScore float64       `json:"similarity_score"`
	EstimatedCost   float64       `json:"estimated_cost"`
	Success         bool          `json:"success"`
}

// SegmentMetric aggregates candidate results for one (segment, component, approach).
type SegmentMetric struct {
	Outputs                 []string `json:"-"`
	AvgResponseTime         float64  `json:"avg_response_time"` // seconds
	AvgCost                 float64  `json:"avg_cost"`
	SuccessRate             float64  `json:"success_rate"`
	WithinSegmentSimilarity float64  `json:"within_segment_similarity"`
	TotalUsers              int      `json:"total_users"`
	Successes               int      `json:"successes"`
}

// UserResult holds every candidate produced for one user of a segment.
type UserResult struct {
	Segment    string
	UserID     string
	Candidates []CandidateResult
}

// EvaluationRun is the persisted record of one segment evaluation.
type EvaluationRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	Users      []UserResult
	Year       int
	Month      int
}
