// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// Storage defines the contract for our persistence layer.
//
// InsertTransactions appends rows without deduplication. Callers must not
// insert the same logical batch twice. Period queries take a half-open
// [start, end) range.
type Storage interface {
	// Transaction operations
	InsertTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetMonthlyProfile(ctx context.Context, userID string, year, month int) (*model.MonthlyProfile, error)
	GetMonthlyTransactions(ctx context.Context, userID string, year, month int) ([]model.Transaction, error)
	GetActiveUsers(ctx context.Context, start, end time.Time, minTransactions int) ([]model.ActiveUser, error)
	GetLatestSegmentTags(ctx context.Context, start, end time.Time) (map[string]string, error)
	GetSegmentTags(ctx context.Context, start, end time.Time) (map[string][]string, error)
	GetUserIDs(ctx context.Context) ([]string, error)
	HasUser(ctx context.Context, userID string) (bool, error)
	GetTransactionCount(ctx context.Context) (int, error)
	ClearTransactions(ctx context.Context) error

	// Monthly stats memoization
	SaveMonthlyStats(ctx context.Context, stats model.MonthlyStats) error
	GetMonthlyStats(ctx context.Context, userID string, year, month int) (*model.MonthlyStats, error)

	// Ingestion bookkeeping
	RecordIngestedFile(ctx context.Context, path, checksum string, rows int) error
	IsFileIngested(ctx context.Context, checksum string) (bool, error)

	// Evaluation runs
	SaveEvaluationRun(ctx context.Context, run *model.EvaluationRun) error
	GetEvaluationRun(ctx context.Context, id string) (*model.EvaluationRun, error)

	// Database management
	Backup(ctx context.Context, destPath string) error
	Migrate(ctx context.Context) error
	Close() error
}

// Generator maps a prompt to generated text. Calls may block and may fail.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EthicsClassifier labels text as Safe or not, with a confidence in [0,1].
// Implementations must be deterministic for identical input.
type EthicsClassifier interface {
	Classify(ctx context.Context, text string) (model.EthicsVerdict, error)
}

// Embedder returns one fixed-dimension vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
