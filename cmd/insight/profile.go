package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/analytics"
	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/profile"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <user_id>",
		Short: "Show a user's monthly transaction summary",
		Long: `Print the monthly summary of one user exactly as it is given to the
language model: totals, counts, per-method shares and segment tags.`,
		Args: cobra.ExactArgs(1),
		RunE: runProfile,
	}
	addPeriodFlags(cmd)
	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	year, month, err := readPeriod(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := newAnalytics(store, cfg).MonthlyProfile(ctx, args[0], year, month)
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(fmt.Sprintf("no transactions for user %q", args[0]), err)
	}
	if err != nil {
		return err
	}

	outln(profile.Render(p, args[0], year, month))
	return nil
}

func activeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List users active in a month",
		Long: `List the users whose transaction count in the month reaches
--min-transactions and whose spend and cash-in totals reach the given minimums,
most active first.`,
		Args: cobra.NoArgs,
		RunE: runActive,
	}
	addPeriodFlags(cmd)
	cmd.Flags().Int("min-transactions", -1, "minimum transactions in the month (default analytics.min_transactions)")
	cmd.Flags().Int("max-users", -1, "maximum users to list, 0 for no cap (default analytics.max_users)")
	cmd.Flags().String("min-spend", "0", "minimum total spend")
	cmd.Flags().String("min-cash-in", "0", "minimum total cash-in")
	return cmd
}

func runActive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	year, month, err := readPeriod(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := activeOptions(cmd, cfg.Analytics.MinTransactions, cfg.Analytics.MaxUsers)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	users, err := newAnalytics(store, cfg).ActiveUserStats(ctx, year, month, opts)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		outln(cli.FormatInfo("No active users in this period."))
		return nil
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			u.UserID,
			strconv.Itoa(u.TransactionCount),
			u.TotalSpend.StringFixed(2),
			u.TotalCashIn.StringFixed(2),
		})
	}
	outln(cli.FormatTitle(fmt.Sprintf("%d active users in %d-%02d", len(users), year, month)))
	outln(cli.RenderTable([]string{"user_id", "transactions", "spend", "cash_in"}, rows))
	return nil
}

// activeOptions reads the threshold flags cmd defines. Negative or missing
// flags mean the configured default.
func activeOptions(cmd *cobra.Command, defaultMin, defaultMax int) (analytics.ActiveUserOptions, error) {
	opts := analytics.DefaultActiveUserOptions()
	opts.MinTransactions = defaultMin
	opts.MaxUsers = defaultMax

	flags := cmd.Flags()
	if flags.Lookup("min-transactions") != nil {
		if v, _ := flags.GetInt("min-transactions"); v >= 0 {
			opts.MinTransactions = v
		}
	}
	if flags.Lookup("max-users") != nil {
		if v, _ := flags.GetInt("max-users"); v >= 0 {
			opts.MaxUsers = v
		}
	}

	for flag, dst := range map[string]*decimal.Decimal{"min-spend": &opts.MinSpend, "min-cash-in": &opts.MinCashIn} {
		if flags.Lookup(flag) == nil {
			continue
		}
		raw, _ := flags.GetString(flag)
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return opts, common.NewUserError(fmt.Sprintf("--%s must be a number", flag), err)
		}
		*dst = d
	}
	return opts, nil
}
