package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// SaveMonthlyStats upserts the memoized totals for (user, year, month).
// The table is a cache; transactions stay the source of truth.
func (s *SQLiteStorage) SaveMonthlyStats(ctx context.Context, stats model.MonthlyStats) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(stats.UserID, "userID"); err != nil {
		return err
	}
	if err := validatePeriod(stats.Year, stats.Month); err != nil {
		return err
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_stats (
				user_id, year, month, total_spend_micros, spend_count,
				total_cash_in_micros, cash_in_count, computed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id, year, month) DO UPDATE SET
				total_spend_micros = excluded.total_spend_micros,
				spend_count = excluded.spend_count,
				total_cash_in_micros = excluded.total_cash_in_micros,
				cash_in_count = excluded.cash_in_count,
				computed_at = excluded.computed_at
		`,
			stats.UserID, stats.Year, stats.Month,
			toMicros(stats.TotalSpend), stats.SpendCount,
			toMicros(stats.TotalCashIn), stats.CashInCount,
		)
		if err != nil {
			return fmt.Errorf("failed to save monthly stats: %w", err)
		}
		return nil
	})
}

// GetMonthlyStats returns the memoized totals or an error wrapping common.ErrNotFound.
func (s *SQLiteStorage) GetMonthlyStats(ctx context.Context, userID string, year, month int) (*model.MonthlyStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	stats := &model.MonthlyStats{UserID: userID, Year: year, Month: month}
	var spendMicros, cashInMicros int64
	err := s.db.QueryRowContext(ctx, `
		SELECT total_spend_micros, spend_count, total_cash_in_micros, cash_in_count
		FROM monthly_stats
		WHERE user_id = ? AND year = ? AND month = ?
	`, userID, year, month).Scan(&spendMicros, &stats.SpendCount, &cashInMicros, &stats.CashInCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: monthly stats for %s %04d-%02d", common.ErrNotFound, userID, year, month)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly stats: %w", err)
	}

	stats.TotalSpend = fromMicros(spendMicros)
	stats.TotalCashIn = fromMicros(cashInMicros)
	return stats, nil
}
