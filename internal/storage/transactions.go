package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// timestampLayout is fixed width so lexical order matches chronological order.
const timestampLayout = "2006-01-02 15:04:05.000000"

// Amounts are stored as integer micro-units so SQL sums stay exact.
const amountExponent = 6

func toMicros(d decimal.Decimal) int64 {
	return d.Shift(amountExponent).Round(0).IntPart()
}

func fromMicros(micros int64) decimal.Decimal {
	return decimal.New(micros, -amountExponent)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}

type periodKey struct {
	userID string
	year   int
	month  int
}

// InsertTransactions appends transactions in a single database transaction.
//
// There is no deduplication: inserting the same batch twice counts it twice.
// Records with a missing identifying field are skipped and logged; the rest
// of the batch is still written and the returned error wraps
// common.ErrPartialIngestion. Negative amounts are stored as zero.
func (s *SQLiteStorage) InsertTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	inserted := 0
	skipped := 0
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (
				user_id, timestamp, transaction_type, transaction_method,
				amount_micros, segment_tag, year, month
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		touched := make(map[periodKey]struct{})
		for i := range transactions {
			txn := transactions[i]
			if err := validateTransaction(&txn); err != nil {
				slog.Warn("Skipping invalid transaction", "index", i, "user_id", txn.UserID, "error", err)
				skipped++
				continue
			}

			amount := txn.Amount
			if amount.IsNegative() {
				slog.Warn("Negative amount stored as zero", "index", i, "user_id", txn.UserID, "amount", amount.String())
				amount = decimal.Zero
			}

			ts := txn.Timestamp.UTC()
			key := periodKey{userID: txn.UserID, year: ts.Year(), month: int(ts.Month())}
			if _, err := stmt.ExecContext(ctx,
				txn.UserID,
				formatTimestamp(ts),
				string(txn.Type),
				txn.Method,
				toMicros(amount),
				txn.SegmentTag(),
				key.year,
				key.month,
			); err != nil {
				return fmt.Errorf("failed to insert transaction %d: %w", i, err)
			}
			touched[key] = struct{}{}
			inserted++
		}

		for key := range touched {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM monthly_stats WHERE user_id = ? AND year = ? AND month = ?`,
				key.userID, key.year, key.month,
			); err != nil {
				return fmt.Errorf("failed to invalidate monthly stats: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if skipped > 0 {
		return inserted, fmt.Errorf("%w: skipped %d of %d records", common.ErrPartialIngestion, skipped, len(transactions))
	}
	return inserted, nil
}

// GetMonthlyProfile aggregates one user's transactions for a calendar month.
// An unknown user or empty month yields a zero profile, not an error.
func (s *SQLiteStorage) GetMonthlyProfile(ctx context.Context, userID string, year, month int) (*model.MonthlyProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	return s.getMonthlyProfileTx(ctx, s.db, userID, year, month)
}

func (s *SQLiteStorage) getMonthlyProfileTx(ctx context.Context, q queryable, userID string, year, month int) (*model.MonthlyProfile, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT transaction_method, transaction_type, COUNT(*), COALESCE(SUM(amount_micros), 0)
		FROM transactions
		WHERE user_id = ? AND year = ? AND month = ?
		GROUP BY transaction_method, transaction_type
	`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly profile: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profile := &model.MonthlyProfile{
		TotalSpend:  decimal.Zero,
		TotalCashIn: decimal.Zero,
	}
	for rows.Next() {
		var (
			method, txnType string
			count           int
			micros          int64
		)
		if err := rows.Scan(&method, &txnType, &count, &micros); err != nil {
			return nil, fmt.Errorf("failed to scan method summary: %w", err)
		}

		summary := model.MethodSummary{
			Method:      method,
			Type:        model.TransactionType(txnType),
			Count:       count,
			TotalAmount: fromMicros(micros),
		}
		profile.Methods = append(profile.Methods, summary)

		switch summary.Type {
		case model.TypeSpend:
			profile.TotalSpend = profile.TotalSpend.Add(summary.TotalAmount)
			profile.SpendCount += count
		case model.TypeCashIn:
			profile.TotalCashIn = profile.TotalCashIn.Add(summary.TotalAmount)
			profile.CashInCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate method summaries: %w", err)
	}

	segments, err := s.distinctSegments(ctx, q, userID, year, month)
	if err != nil {
		return nil, err
	}
	profile.Segments = segments

	return profile, nil
}

func (s *SQLiteStorage) distinctSegments(ctx context.Context, q queryable, userID string, year, month int) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT segment_tag
		FROM transactions
		WHERE user_id = ? AND year = ? AND month = ? AND segment_tag != ''
		ORDER BY segment_tag
	`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var segments []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, tag)
	}
	return segments, rows.Err()
}

// GetMonthlyTransactions returns one user's transactions for a month in timestamp order.
func (s *SQLiteStorage) GetMonthlyTransactions(ctx context.Context, userID string, year, month int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, timestamp, transaction_type, transaction_method, amount_micros, segment_tag, year, month
		FROM transactions
		WHERE user_id = ? AND year = ? AND month = ?
		ORDER BY timestamp, id
	`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		var (
			txn         model.Transaction
			ts, txnType string
			segmentTag  string
			micros      int64
		)
		if err := rows.Scan(&txn.UserID, &ts, &txnType, &txn.Method, &micros, &segmentTag, &txn.Year, &txn.Month); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		parsed, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		txn.Timestamp = parsed
		txn.Type = model.TransactionType(txnType)
		txn.Amount = fromMicros(micros)
		txn.SegmentTags = model.SplitTags(segmentTag)
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// GetActiveUsers aggregates transactions in [start, end) per user and keeps
// users with at least minTransactions rows. Rows come back ordered by count
// descending, then user id.
func (s *SQLiteStorage) GetActiveUsers(ctx context.Context, start, end time.Time, minTransactions int) ([]model.ActiveUser, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			user_id,
			COUNT(*) AS transaction_count,
			COALESCE(SUM(CASE WHEN transaction_type = ? THEN amount_micros ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN transaction_type = ? THEN amount_micros ELSE 0 END), 0)
		FROM transactions
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY user_id
		HAVING COUNT(*) >= ?
		ORDER BY transaction_count DESC, user_id
	`, string(model.TypeSpend), string(model.TypeCashIn), formatTimestamp(start), formatTimestamp(end), minTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.ActiveUser
	for rows.Next() {
		var (
			user                      model.ActiveUser
			spendMicros, cashInMicros int64
		)
		if err := rows.Scan(&user.UserID, &user.TransactionCount, &spendMicros, &cashInMicros); err != nil {
			return nil, fmt.Errorf("failed to scan active user: %w", err)
		}
		user.TotalSpend = fromMicros(spendMicros)
		user.TotalCashIn = fromMicros(cashInMicros)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}
	return users, nil
}

// GetLatestSegmentTags returns, per user, the stored segment tag of their most
// recent transaction in [start, end). Ties on timestamp go to the row inserted last.
func (s *SQLiteStorage) GetLatestSegmentTags(ctx context.Context, start, end time.Time) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, segment_tag FROM (
			SELECT
				user_id,
				segment_tag,
				ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY timestamp DESC, id DESC) AS rn
			FROM transactions
			WHERE timestamp >= ? AND timestamp < ?
		)
		WHERE rn = 1
	`, formatTimestamp(start), formatTimestamp(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest segment tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := make(map[string]string)
	for rows.Next() {
		var userID, tag string
		if err := rows.Scan(&userID, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan segment tag: %w", err)
		}
		tags[userID] = tag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segment tags: %w", err)
	}
	return tags, nil
}

// GetSegmentTags returns every individual tag each user carried in [start, end),
// in order of first appearance.
func (s *SQLiteStorage) GetSegmentTags(ctx context.Context, start, end time.Time) (map[string][]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, segment_tag
		FROM transactions
		WHERE timestamp >= ? AND timestamp < ? AND segment_tag != ''
		ORDER BY timestamp, id
	`, formatTimestamp(start), formatTimestamp(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query segment tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for rows.Next() {
		var userID, value string
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan segment tag: %w", err)
		}
		if seen[userID] == nil {
			seen[userID] = make(map[string]struct{})
		}
		for _, tag := range model.SplitTags(value) {
			if _, ok := seen[userID][tag]; ok {
				continue
			}
			seen[userID][tag] = struct{}{}
			tags[userID] = append(tags[userID], tag)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segment tags: %w", err)
	}
	return tags, nil
}

// GetUserIDs returns every distinct user id, sorted.
func (s *SQLiteStorage) GetUserIDs(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// HasUser reports whether any transaction exists for userID.
func (s *SQLiteStorage) HasUser(ctx context.Context, userID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE user_id = ? LIMIT 1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return true, nil
}

// GetTransactionCount returns the total number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ClearTransactions deletes every transaction and the derived monthly stats.
func (s *SQLiteStorage) ClearTransactions(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("failed to clear transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_stats`); err != nil {
			return fmt.Errorf("failed to clear monthly stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ingested_files`); err != nil {
			return fmt.Errorf("failed to clear ingested files: %w", err)
		}
		return nil
	})
}
