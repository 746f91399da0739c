package model

import (
	"github.com/shopspring/decimal"
)

// MethodSummary aggregates one (method, type) pair within a month.
type MethodSummary struct {
	Method      string
	Type        TransactionType
	TotalAmount decimal.Decimal
	Count       int
}

// MonthlyProfile holds per-user statistics for a single calendar month.
type MonthlyProfile struct {
	TotalSpend  decimal.Decimal
	TotalCashIn decimal.Decimal
	Methods     []MethodSummary
	Segments    []string
	SpendCount  int
	CashInCount int
}

// IsEmpty reports whether the profile has no spend and no cash-in rows.
func (p *MonthlyProfile) IsEmpty() bool {
	return p == nil || (p.SpendCount == 0 && p.CashInCount == 0)
}

// MethodsOfType returns the method summaries for a single transaction type.
func (p *MonthlyProfile) MethodsOfType(t TransactionType) []MethodSummary {
	var out []MethodSummary
	for _, m := range p.Methods {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// MonthlyStats is the cached subset of a MonthlyProfile stored in monthly_stats.
type MonthlyStats struct {
	UserID      string
	TotalSpend  decimal.Decimal
	TotalCashIn decimal.Decimal
	Year        int
	Month       int
	SpendCount  int
	CashInCount int
}

// ActiveUser is one row of the active-user aggregation.
type ActiveUser struct {
	UserID           string
	TotalSpend       decimal.Decimal
	TotalCashIn      decimal.Decimal
	TransactionCount int
}
