package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/battle"
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/spf13/cobra"
)

// SimulateOptions 保存 simulate 命令的参数。
type SimulateOptions struct {
	*RootOptions
	Games      int
	Player     string
	Difficulty string
	MaxTurns   int
}

// SimulatedGame 是一场自动进行的战斗。
type SimulatedGame struct {
	GameID              int64  `json:"game_id"`
	Winner              string `json:"winner"`
	Rounds              int    `json:"rounds"`
	MaxConsecutiveCrits int    `json:"max_consecutive_crits"`
	CommitStatus        string `json:"commit_status"`
}

// NewSimulateCommand 创建 simulate 命令。
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Auto-play battles and commit them",
		Long: `Play complete battles with the auto-play strategy and commit each result
through the same gateway the server uses.

Examples:
  arenactl simulate --games 10 --difficulty hard
  arenactl simulate --player bot --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Games, "games", "n", 1, "number of battles")
	cmd.Flags().StringVar(&opts.Player, "player", "simulator", "player name recorded with each game")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "normal", "easy, normal or hard")
	cmd.Flags().IntVar(&opts.MaxTurns, "max-turns", 200, "abort a battle after this many turns")

	return cmd
}

func runSimulate(ctx context.Context, opts *SimulateOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	difficulty := combatant.ParseDifficulty(opts.Difficulty)
	if opts.Games < 1 {
		return fmt.Errorf("--games must be at least 1")
	}

	env, err := opts.Open(ctx, opts.Verbose)
	if err != nil {
		return err
	}
	defer env.Close()

	graceful := lifecycle.NewManager("simulate", env.Logger)
	forceful := lifecycle.NewManager("simulate-forceful", env.Logger)
	appender := eventlog.NewAppender(env.RDB, eventlog.Options{MaxLen: env.Config.Battle.EventLogMaxLen}, env.Logger)
	gh, err := graceful.NewServiceHandle("event-appender")
	if err != nil {
		return err
	}
	fh, err := forceful.NewServiceHandle("event-appender")
	if err != nil {
		return err
	}
	go appender.Run(gh, fh)
	defer func() {
		graceful.Shutdown()
		if left := graceful.WaitWithTimeout(5 * time.Second); len(left) > 0 {
			forceful.Shutdown()
			forceful.WaitWithTimeout(time.Second)
		}
	}()

	templates := combatant.NewTemplateStore(env.RDB, env.Logger)
	registry := battle.NewRegistry(env.Gateway, env.Gateway, templates, appender, battle.Options{
		CommitTimeout: env.Config.Battle.CommitTimeout,
	}, env.Logger)

	results := make([]SimulatedGame, 0, opts.Games)
	for i := 0; i < opts.Games; i++ {
		game, err := playOut(ctx, registry, opts.Player, difficulty, opts.MaxTurns)
		if err != nil {
			return err
		}
		results = append(results, game)
	}
	if err := appender.Flush(ctx); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, results)
	}
	for _, g := range results {
		fmt.Fprintf(out, "game %d: %s won after %d rounds (crit streak %d, %s)\n",
			g.GameID, g.Winner, g.Rounds, g.MaxConsecutiveCrits, g.CommitStatus)
	}
	return nil
}

func playOut(ctx context.Context, registry *battle.Registry, player string, difficulty combatant.Difficulty, maxTurns int) (SimulatedGame, error) {
	snap, err := registry.Start(ctx, player, difficulty)
	if err != nil {
		return SimulatedGame{}, err
	}
	for turns := 0; !snap.GameOver; turns++ {
		if turns >= maxTurns {
			return SimulatedGame{}, fmt.Errorf("game %d did not finish within %d turns", snap.GameID, maxTurns)
		}
		if snap, err = registry.Act(ctx, snap.GameID, battle.TurnInput{AutoPlay: true}); err != nil {
			return SimulatedGame{}, err
		}
	}
	return SimulatedGame{
		GameID:              snap.GameID,
		Winner:              string(snap.Winner),
		// Round 已经越过最后一个回合
		Rounds:              snap.Round - 1,
		MaxConsecutiveCrits: snap.MaxConsecutiveCrits,
		CommitStatus:        snap.CommitStatus,
	}, nil
}
