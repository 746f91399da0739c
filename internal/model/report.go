package model

// ReportMetadata identifies whose report it is and for which period.
type ReportMetadata struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"` // Full month name, e.g. "March"
	Year   int    `json:"year"`
}

// Report is the persisted report artifact.
type Report struct {
	ReportComponents map[Component]string   `json:"report_components"`
	Evaluation       map[Component]Score    `json:"evaluation"`
	BestApproaches   map[Component]Approach `json:"best_approaches,omitempty"`
	Metadata         ReportMetadata         `json:"metadata"`
}

// EvaluationRow is one flattened (report, component) evaluation entry.
type EvaluationRow struct {
	UserID          string    `json:"user_id"`
	Month           string    `json:"month"`
	Component       Component `json:"component"`
	EthicalFlag     string    `json:"ethical_flag"`
	BestApproach    Approach  `json:"best_approach"`
	Confidence      float64   `json:"confidence"`
	SimilarityScore float64   `json:"similarity_score"`
	Year            int       `json:"year"`
}
