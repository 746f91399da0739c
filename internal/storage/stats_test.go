package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

func TestMonthlyStats_RoundTripAndInvalidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetMonthlyStats(ctx, "u1", 2025, 3)
	require.ErrorIs(t, err, common.ErrNotFound)

	stats := model.MonthlyStats{
		UserID:      "u1",
		Year:        2025,
		Month:       3,
		TotalSpend:  decimal.RequireFromString("150.25"),
		SpendCount:  2,
		TotalCashIn: decimal.RequireFromString("200"),
		CashInCount: 1,
	}
	require.NoError(t, store.SaveMonthlyStats(ctx, stats))

	stats.SpendCount = 3
	require.NoError(t, store.SaveMonthlyStats(ctx, stats))

	got, err := store.GetMonthlyStats(ctx, "u1", 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SpendCount)
	assert.True(t, stats.TotalSpend.Equal(got.TotalSpend))
	assert.True(t, stats.TotalCashIn.Equal(got.TotalCashIn))

	// A new transaction in the same period drops the cached row.
	_, err = store.InsertTransactions(ctx, []model.Transaction{
		txn("u1", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), model.TypeSpend, "qr", "1"),
	})
	require.NoError(t, err)

	_, err = store.GetMonthlyStats(ctx, "u1", 2025, 3)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.SaveMonthlyStats(ctx, model.MonthlyStats{UserID: "u1", Year: 2025, Month: 0}), common.ErrInvalidArgument)
}

func TestIngestedFiles(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := store.IsFileIngested(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RecordIngestedFile(ctx, "/data/a.csv", "deadbeef", 10))
	require.NoError(t, store.RecordIngestedFile(ctx, "/data/a.csv", "deadbeef", 10))

	ok, err = store.IsFileIngested(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)

	var rows int
	require.NoError(t, store.db.QueryRow(`SELECT rows FROM ingested_files WHERE checksum = ?`, "deadbeef").Scan(&rows))
	assert.Equal(t, 20, rows)

	assert.ErrorIs(t, store.RecordIngestedFile(ctx, "/data/a.csv", "", 1), ErrEmptyString)
}
