package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/spf13/cobra"
)

// NewReplayCommand 创建 replay 命令。
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <game-id>",
		Short: "Print the event log of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			return runReplay(cmd.Context(), rootOpts, cmd, id)
		},
	}
}

func runReplay(ctx context.Context, opts *RootOptions, cmd *cobra.Command, gameID int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := opts.Open(ctx, opts.Verbose)
	if err != nil {
		return err
	}
	defer env.Close()

	events, err := eventlog.Replay(ctx, env.RDB, gameID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, events)
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "no events recorded for game %d\n", gameID)
		return nil
	}
	for _, ev := range events {
		crit := ""
		if ev.Critical {
			crit = " (critical)"
		}
		fmt.Fprintf(out, "round %d  %-12s %-10s %3d%s  %s\n", ev.Turn, ev.Actor, ev.Action, ev.Value, crit, ev.Detail)
	}
	return nil
}
