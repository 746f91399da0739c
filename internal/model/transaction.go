package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money leaving from money entering an account.
type TransactionType string

// Transaction types as stored in the transactions table.
const (
	TypeSpend  TransactionType = "SPEND"
	TypeCashIn TransactionType = "CASH-IN"
)

// ParseTransactionType normalizes a raw type label. Both "CASH-IN" and
// "CASH_IN" are accepted for cash-in rows.
func ParseTransactionType(raw string) (TransactionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SPEND":
		return TypeSpend, true
	case "CASH-IN", "CASH_IN", "CASHIN":
		return TypeCashIn, true
	default:
		return "", false
	}
}

// Transaction represents a single spend or cash-in event for one user.
type Transaction struct {
	Timestamp   time.Time
	UserID      string
	Type        TransactionType
	Method      string
	Amount      decimal.Decimal
	SegmentTags []string // Cohort labels attached to the event upstream
	Year        int      // Derived from Timestamp at insertion
	Month       int      // Derived from Timestamp at insertion
}

// SegmentTag returns the stored representation of the segment tags.
func (t *Transaction) SegmentTag() string {
	return JoinTags(t.SegmentTags)
}

// JoinTags joins segment tags the way the ingestion layout stores them.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// SplitTags splits a stored segment tag value into its individual tags.
func SplitTags(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
