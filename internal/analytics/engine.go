// Package analytics answers the aggregate questions downstream stages ask of
// the transaction store: monthly profiles, active users and segment groupings.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// Unlimited disables the MaxUsers cap.
const Unlimited = 0

// Strategy decides which segment tags place a user in a segment.
type Strategy string

// Segment assignment strategies.
const (
	// StrategyLatest uses the tag of the user's most recent transaction in the period.
	StrategyLatest Strategy = "latest"
	// StrategyAllTags places the user in every tag seen during the period.
	StrategyAllTags Strategy = "all_tags"
)

// ParseStrategy validates a configured strategy name. Empty means StrategyLatest.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyLatest:
		return StrategyLatest, nil
	case StrategyAllTags:
		return StrategyAllTags, nil
	default:
		return "", common.InvalidArgumentf("unknown segment strategy %q", name)
	}
}

// ActiveUserOptions filters the active-user query.
type ActiveUserOptions struct {
	MinSpend        decimal.Decimal
	MinCashIn       decimal.Decimal
	MinTransactions int
	MaxUsers        int // Unlimited for no cap
}

// DefaultActiveUserOptions returns the default active-user filter.
func DefaultActiveUserOptions() ActiveUserOptions {
	return ActiveUserOptions{
		MinTransactions: 3,
		MaxUsers:        1000,
		MinSpend:        decimal.Zero,
		MinCashIn:       decimal.Zero,
	}
}

// SegmentOptions configures segment grouping. MaxUsers is both the minimum
// segment size and the size each kept segment is truncated to.
type SegmentOptions struct {
	Strategy Strategy
	ActiveUserOptions
}

// DefaultSegmentOptions returns the default segment grouping options.
func DefaultSegmentOptions() SegmentOptions {
	opts := SegmentOptions{
		ActiveUserOptions: DefaultActiveUserOptions(),
		Strategy:          StrategyLatest,
	}
	opts.MaxUsers = 50
	return opts
}

// Config holds configuration options for the analytics engine.
type Config struct {
	// CacheStats writes computed totals to the monthly_stats table.
	CacheStats bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{CacheStats: true}
}

// Engine computes aggregates over a transaction store.
type Engine struct {
	store      service.Storage
	logger     *slog.Logger
	cacheStats bool
}

// New creates an analytics engine with the default configuration.
func New(store service.Storage) *Engine {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates an analytics engine with custom configuration.
func NewWithConfig(store service.Storage, config Config) *Engine {
	return &Engine{
		store:      store,
		logger:     slog.Default().With("component", "analytics"),
		cacheStats: config.CacheStats,
	}
}

// MonthPeriod returns the half-open [start, end) range covering a calendar month in UTC.
func MonthPeriod(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthlyProfile returns the profile of a known user for one month.
// Unknown users fail with common.ErrNotFound.
func (e *Engine) MonthlyProfile(ctx context.Context, userID string, year, month int) (*model.MonthlyProfile, error) {
	if err := common.ValidateMonth(month); err != nil {
		return nil, err
	}
	if err := e.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	profile, err := e.store.GetMonthlyProfile(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly profile: %w", err)
	}

	if e.cacheStats {
		e.remember(ctx, statsFromProfile(userID, year, month, profile))
	}
	return profile, nil
}

// MonthlyStats returns the totals for one month, served from the
// monthly_stats memo when present.
func (e *Engine) MonthlyStats(ctx context.Context, userID string, year, month int) (*model.MonthlyStats, error) {
	if err := common.ValidateMonth(month); err != nil {
		return nil, err
	}

	if e.cacheStats {
		stats, err := e.store.GetMonthlyStats(ctx, userID, year, month)
		switch {
		case err == nil:
			return stats, nil
		case !errors.Is(err, common.ErrNotFound):
			e.logger.Warn("Monthly stats cache read failed", "user_id", userID, "error", err)
		}
	}

	profile, err := e.MonthlyProfile(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}
	stats := statsFromProfile(userID, year, month, profile)
	return &stats, nil
}

func (e *Engine) remember(ctx context.Context, stats model.MonthlyStats) {
	if err := e.store.SaveMonthlyStats(ctx, stats); err != nil {
		e.logger.Warn("Failed to cache monthly stats", "user_id", stats.UserID, "error", err)
	}
}

func statsFromProfile(userID string, year, month int, p *model.MonthlyProfile) model.MonthlyStats {
	return model.MonthlyStats{
		UserID:      userID,
		Year:        year,
		Month:       month,
		TotalSpend:  p.TotalSpend,
		SpendCount:  p.SpendCount,
		TotalCashIn: p.TotalCashIn,
		CashInCount: p.CashInCount,
	}
}

func (e *Engine) requireUser(ctx context.Context, userID string) error {
	ok, err := e.store.HasUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s", common.ErrNotFound, userID)
	}
	return nil
}

// ActiveUsers returns the ids of users active in the month, most active first.
func (e *Engine) ActiveUsers(ctx context.Context, year, month int, opts ActiveUserOptions) ([]string, error) {
	users, err := e.activeUsers(ctx, year, month, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	return ids, nil
}

// ActiveUserStats is ActiveUsers with the aggregate row of each user.
func (e *Engine) ActiveUserStats(ctx context.Context, year, month int, opts ActiveUserOptions) ([]model.ActiveUser, error) {
	return e.activeUsers(ctx, year, month, opts)
}

func (e *Engine) activeUsers(ctx context.Context, year, month int, opts ActiveUserOptions) ([]model.ActiveUser, error) {
	if err := common.ValidateMonth(month); err != nil {
		return nil, err
	}

	start, end := MonthPeriod(year, month)
	rows, err := e.store.GetActiveUsers(ctx, start, end, opts.MinTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}

	filtered := make([]model.ActiveUser, 0, len(rows))
	for _, u := range rows {
		if u.TotalSpend.GreaterThanOrEqual(opts.MinSpend) && u.TotalCashIn.GreaterThanOrEqual(opts.MinCashIn) {
			filtered = append(filtered, u)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].TransactionCount > filtered[j].TransactionCount
	})

	if opts.MaxUsers > Unlimited && len(filtered) > opts.MaxUsers {
		filtered = filtered[:opts.MaxUsers]
	}
	return filtered, nil
}

// SegmentUsers groups the month's active users by segment tag. Only segments
// with at least opts.MaxUsers members are kept, each truncated to exactly
// opts.MaxUsers users in activity order.
func (e *Engine) SegmentUsers(ctx context.Context, year, month int, opts SegmentOptions) (map[string][]string, error) {
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}

	activeOpts := opts.ActiveUserOptions
	activeOpts.MaxUsers = Unlimited
	active, err := e.activeUsers(ctx, year, month, activeOpts)
	if err != nil {
		return nil, err
	}

	start, end := MonthPeriod(year, month)
	tagsByUser, err := e.tagsFor(ctx, strategy, start, end)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]string)
	for _, u := range active {
		tags := tagsByUser[u.UserID]
		if len(tags) == 0 {
			e.logger.Debug("Active user has no segment tag", "user_id", u.UserID)
			continue
		}
		for _, tag := range tags {
			groups[tag] = append(groups[tag], u.UserID)
		}
	}

	for segment, users := range groups {
		if len(users) < opts.MaxUsers {
			delete(groups, segment)
			continue
		}
		if opts.MaxUsers > Unlimited {
			groups[segment] = users[:opts.MaxUsers]
		}
	}

	e.logger.Debug("Grouped users by segment",
		"year", year,
		"month", month,
		"strategy", strategy,
		"active_users", len(active),
		"segments", len(groups))
	return groups, nil
}

func (e *Engine) tagsFor(ctx context.Context, strategy Strategy, start, end time.Time) (map[string][]string, error) {
	if strategy == StrategyAllTags {
		tags, err := e.store.GetSegmentTags(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to get segment tags: %w", err)
		}
		return tags, nil
	}

	latest, err := e.store.GetLatestSegmentTags(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest segment tags: %w", err)
	}
	tags := make(map[string][]string, len(latest))
	for user, tag := range latest {
		if tag != "" {
			tags[user] = []string{tag}
		}
	}
	return tags, nil
}

// SortedSegments returns the segment names of a grouping in lexical order.
func SortedSegments(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
