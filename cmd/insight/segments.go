package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/analytics"
	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/config"
)

func segmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Group a month's active users by segment tag",
		Long: `Group active users by segment tag. A segment is listed only when it has at
least --max-users members, and then exactly its --max-users most active users
are kept.

With --strategy latest a user belongs to the segment of their most recent
transaction in the month. With all_tags a user belongs to every segment tag
seen during the month.`,
		Args: cobra.NoArgs,
		RunE: runSegments,
	}
	addPeriodFlags(cmd)
	addSegmentFlags(cmd)
	cmd.Flags().Bool("members", false, "list the members of each segment")
	return cmd
}

func addSegmentFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "segment strategy, latest or all_tags (default analytics.segment_strategy)")
	cmd.Flags().Int("min-transactions", -1, "minimum transactions in the month (default analytics.min_transactions)")
	cmd.Flags().Int("max-users", -1, "segment size (default analytics.segment_max_users)")
	cmd.Flags().String("min-spend", "0", "minimum total spend")
	cmd.Flags().String("min-cash-in", "0", "minimum total cash-in")
}

func segmentOptions(cmd *cobra.Command, cfg *config.Config) (analytics.SegmentOptions, error) {
	active, err := activeOptions(cmd, cfg.Analytics.MinTransactions, cfg.Analytics.SegmentMaxUsers)
	if err != nil {
		return analytics.SegmentOptions{}, err
	}

	strategy := cfg.Analytics.Strategy
	if name, _ := cmd.Flags().GetString("strategy"); name != "" {
		strategy, err = analytics.ParseStrategy(name)
		if err != nil {
			return analytics.SegmentOptions{}, common.NewUserError("unknown --strategy", err)
		}
	}
	return analytics.SegmentOptions{ActiveUserOptions: active, Strategy: strategy}, nil
}

func runSegments(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	year, month, err := readPeriod(cmd)
	if err != nil {
		return err
	}
	members, _ := cmd.Flags().GetBool("members")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := segmentOptions(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	groups, err := newAnalytics(store, cfg).SegmentUsers(ctx, year, month, opts)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		outln(cli.FormatInfo(fmt.Sprintf("No segment has %d active users in this period.", opts.MaxUsers)))
		return nil
	}

	header := []string{"segment", "users"}
	if members {
		header = append(header, "members")
	}
	rows := make([][]string, 0, len(groups))
	for _, segment := range analytics.SortedSegments(groups) {
		row := []string{segment, strconv.Itoa(len(groups[segment]))}
		if members {
			row = append(row, strings.Join(groups[segment], ", "))
		}
		rows = append(rows, row)
	}

	outln(cli.FormatTitle(fmt.Sprintf("%d segments in %d-%02d (%s)", len(groups), year, month, opts.Strategy)))
	outln(cli.RenderTable(header, rows))
	return nil
}
