package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// SaveEvaluationRun persists a run and all of its candidate results.
// A run without an ID is assigned a new UUID.
func (s *SQLiteStorage) SaveEvaluationRun(ctx context.Context, run *model.EvaluationRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validatePeriod(run.Year, run.Month); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evaluation_runs (id, year, month, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, run.Year, run.Month, formatTimestamp(run.StartedAt), formatTimestamp(run.FinishedAt)); err != nil {
			return fmt.Errorf("failed to save evaluation run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candidate_results (
				run_id, segment, user_id, component, approach, success,
				ethical_flag, confidence, similarity_score, response_time_ms,
				estimated_cost, output_text, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, user := range run.Users {
			for _, c := range user.Candidates {
				if _, err := stmt.ExecContext(ctx,
					run.ID, user.Segment, user.UserID,
					string(c.Component), string(c.Approach), c.Success,
					c.EthicalFlag, c.Confidence, c.SimilarityScore, c.ResponseTime.Milliseconds(),
					c.EstimatedCost, c.OutputText, c.Error,
				); err != nil {
					return fmt.Errorf("failed to save candidate result: %w", err)
				}
			}
		}
		return nil
	})
}

// GetEvaluationRun loads a run by ID. Users and candidates keep their saved order.
func (s *SQLiteStorage) GetEvaluationRun(ctx context.Context, id string) (*model.EvaluationRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	run := &model.EvaluationRun{ID: id}
	var startedAt, finishedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT year, month, started_at, finished_at FROM evaluation_runs WHERE id = ?
	`, id).Scan(&run.Year, &run.Month, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: evaluation run %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation run: %w", err)
	}
	if run.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTimestamp(finishedAt); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT segment, user_id, component, approach, success, ethical_flag,
			confidence, similarity_score, response_time_ms, estimated_cost,
			output_text, error
		FROM candidate_results
		WHERE run_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[[2]string]int)
	for rows.Next() {
		var (
			segment, userID     string
			component, approach string
			c                   model.CandidateResult
			responseMillis      int64
		)
		if err := rows.Scan(&segment, &userID, &component, &approach, &c.Success, &c.EthicalFlag,
			&c.Confidence, &c.SimilarityScore, &responseMillis, &c.EstimatedCost,
			&c.OutputText, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan candidate result: %w", err)
		}
		c.Component = model.Component(component)
		c.Approach = model.Approach(approach)
		c.ResponseTime = time.Duration(responseMillis) * time.Millisecond

		key := [2]string{segment, userID}
		i, ok := index[key]
		if !ok {
			i = len(run.Users)
			index[key] = i
			run.Users = append(run.Users, model.UserResult{Segment: segment, UserID: userID})
		}
		run.Users[i].Candidates = append(run.Users[i].Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidate results: %w", err)
	}

	return run, nil
}
