package cli

import (
	"context"
	"fmt"

	"github.com/SlpAus/dragon-duel-backend/internal/query"
	"github.com/spf13/cobra"
)

// NewLeaderboardCommand 创建 leaderboard 命令。
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:       "leaderboard <longest_rounds|max_damage>",
		Short:     "Show the top entries of a leaderboard",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(query.BoardLongestRounds), string(query.BoardMaxDamage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, rootOpts, func(ctx context.Context, svc *query.Service) error {
				entries, err := svc.Leaderboard(ctx, query.Board(args[0]), k)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%2d. game %-6d %-20s %v\n", e.Rank, e.GameID, e.PlayerName, e.Score)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", query.DefaultTopK, "number of entries")
	return cmd
}

// NewStatsCommand 创建 stats 命令。
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show global counters and per-difficulty character stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, rootOpts, func(ctx context.Context, svc *query.Service) error {
				summary, err := svc.Summary(ctx)
				if err != nil {
					return err
				}
				chars, err := svc.CharacterStats(ctx, query.AggregateMode(mode))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if rootOpts.Format == "json" {
					return writeJSON(out, map[string]interface{}{"summary": summary, "characters": chars})
				}
				fmt.Fprintf(out, "games: %d  player wins: %d  avg rounds: %v\n", summary.TotalGames, summary.PlayerWins, summary.AverageRounds)
				for _, g := range chars.Groups {
					fmt.Fprintf(out, "%-7s games %-5d avg rounds %-5v dragon dmg %-6d person dmg %d\n",
						g.Difficulty, g.Games, g.AvgRounds, g.Dragon.Damage, g.Person.Damage)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(query.ModeAuto), "aggregation mode (auto|scan|index)")
	return cmd
}

func withService(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, svc *query.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := opts.Open(ctx, opts.Verbose)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, query.NewService(env.RDB, env.Archive, env.Logger))
}
