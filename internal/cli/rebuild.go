package cli

import (
	"context"
	"fmt"

	"github.com/SlpAus/dragon-duel-backend/internal/archive"
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/startup"
	"github.com/spf13/cobra"
)

// NewRebuildCommand 创建 rebuild 命令。
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild every derived Redis structure from the archive",
		Long: `Delete the game list, counters and leaderboards in Redis and rewrite
them from the SQL archive. Game records are rewritten too.

Run "arenactl archive sync" first if Redis holds games the archive lacks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to rebuild without --yes")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := rootOpts.Open(ctx, rootOpts.Verbose)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Archive.Migrate(); err != nil {
				return err
			}
			boot := startup.New(env.RDB, env.Archive, env.Gateway, combatant.NewTemplateStore(env.RDB, env.Logger), env.Logger)
			if err := boot.RebuildCache(ctx); err != nil {
				return err
			}
			n, err := env.Archive.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt redis from %d archived games\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the rebuild")
	return cmd
}

// NewArchiveCommand 汇总归档维护相关的命令。
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Maintain the SQL archive",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Copy games missing from the archive out of Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := rootOpts.Open(ctx, rootOpts.Verbose)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Archive.Migrate(); err != nil {
				return err
			}
			r := archive.NewReconciler(env.RDB, env.Archive, nil, env.Config.Archive.ReconcileBatch, env.Logger)
			saved, err := r.Reconcile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d new games\n", saved)
			return nil
		},
	})
	return cmd
}
