package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// Day returns noon UTC on the given date.
func Day(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
}

// Spend builds a SPEND transaction. amount must be a valid decimal string.
func Spend(userID string, ts time.Time, method, amount string, tags ...string) model.Transaction {
	return build(userID, ts, model.TypeSpend, method, amount, tags)
}

// CashIn builds a CASH-IN transaction. amount must be a valid decimal string.
func CashIn(userID string, ts time.Time, method, amount string, tags ...string) model.Transaction {
	return build(userID, ts, model.TypeCashIn, method, amount, tags)
}

func build(userID string, ts time.Time, typ model.TransactionType, method, amount string, tags []string) model.Transaction {
	return model.Transaction{
		UserID:      userID,
		Timestamp:   ts,
		Type:        typ,
		Method:      method,
		Amount:      decimal.RequireFromString(amount),
		SegmentTags: tags,
	}
}

// ActiveMonth returns enough transactions for userID to pass the default
// active-user thresholds in the given month: count spends of 500 and one
// cash-in of 1500, all tagged with tags.
func ActiveMonth(userID string, year, month, count int, tags ...string) []model.Transaction {
	txns := make([]model.Transaction, 0, count+1)
	for i := 0; i < count; i++ {
		txns = append(txns, Spend(userID, Day(year, month, 1+i%28), "card", "500", tags...))
	}
	return append(txns, CashIn(userID, Day(year, month, 28), "bank_transfer", "1500", tags...))
}
