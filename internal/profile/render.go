// Package profile renders a monthly profile as the plain-text summary fed to prompts.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Render formats a profile. Methods are listed by descending amount, then name.
func Render(p *model.MonthlyProfile, userID string, year, month int) string {
	period := fmt.Sprintf("%d-%02d", year, month)
	if p.IsEmpty() {
		return fmt.Sprintf("User %s (%s)\nNo transaction data found for this period.", userID, period)
	}

	lines := []string{
		fmt.Sprintf("User %s monthly transactions Summary (Timestamp: %s)", userID, period),
		fmt.Sprintf("- Total spend is %s with %d transactions", p.TotalSpend.StringFixed(2), p.SpendCount),
	}

	if shares := methodShares(p.MethodsOfType(model.TypeSpend), p.TotalSpend); len(shares) > 0 {
		lines = append(lines, "- Spending methods include "+strings.Join(shares, ", "))
	} else {
		lines = append(lines, "- No spending methods recorded or zero total spend.")
	}

	lines = append(lines, fmt.Sprintf("- Total cash-in is %s with %d transactions", p.TotalCashIn.StringFixed(2), p.CashInCount))

	if shares := methodShares(p.MethodsOfType(model.TypeCashIn), p.TotalCashIn); len(shares) > 0 {
		lines = append(lines, "- Cash-in methods include "+strings.Join(shares, ", "))
	} else {
		lines = append(lines, "- No cash-in methods recorded or zero total cash-in.")
	}

	if tags := FormatTags(p.Segments); len(tags) > 0 {
		lines = append(lines, "- User tags: "+strings.Join(tags, ", "))
	} else {
		lines = append(lines, "- User tags: Not available")
	}

	return strings.Join(lines, "\n")
}

func methodShares(methods []model.MethodSummary, total decimal.Decimal) []string {
	if !total.IsPositive() || len(methods) == 0 {
		return nil
	}

	sorted := make([]model.MethodSummary, len(methods))
	copy(sorted, methods)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].TotalAmount.Cmp(sorted[j].TotalAmount); c != 0 {
			return c > 0
		}
		return sorted[i].Method < sorted[j].Method
	})

	shares := make([]string, len(sorted))
	for i, m := range sorted {
		pct := m.TotalAmount.Div(total).Mul(hundred)
		shares[i] = fmt.Sprintf("%s with %s%%", strings.ToLower(m.Method), pct.StringFixed(2))
	}
	return shares
}

// FormatTags lower-cases tags and replaces underscores with spaces.
func FormatTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(strings.ToLower(tag), "_", " "))
	}
	return out
}
