// Package cli 实现 arenactl，即战斗存储的运维工具。
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/SlpAus/dragon-duel-backend/internal/archive"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/database"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RootOptions 保存所有命令共用的全局参数。
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Open 连接各存储，测试中会被替换
	Open func(ctx context.Context, verbose bool) (*Env, error)
}

// ValidFormats 定义允许的输出格式。
var ValidFormats = []string{"text", "json"}

// Env 是命令访问各存储所需的环境。
type Env struct {
	Config  *config.Config
	RDB     *redis.Client
	DB      *gorm.DB
	Gateway *record.Gateway
	Archive *archive.Store
	Logger  *zap.Logger

	closers []func()
}

// Close 释放为该 Env 打开的连接。
func (e *Env) Close() {
	for _, c := range e.closers {
		c()
	}
	_ = e.Logger.Sync()
}

// OpenFromConfig 根据 config.yaml 和环境变量构造 Env。
func OpenFromConfig(_ context.Context, verbose bool) (*Env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = logging.New(config.LoggingConfig{Level: "debug", Development: true}); err != nil {
			return nil, err
		}
	}
	rdb, err := database.OpenRedis(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	db, err := database.OpenSQL(cfg.Database)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	env := newEnv(cfg, rdb, db, logger)
	env.closers = append(env.closers,
		func() { _ = rdb.Close() },
		func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	)
	return env, nil
}

func newEnv(cfg *config.Config, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *Env {
	return &Env{
		Config: cfg,
		RDB:    rdb,
		DB:     db,
		Gateway: record.NewGateway(rdb, nil, record.Options{
			Retries:  cfg.Battle.CommitRetries,
			TTL:      cfg.Battle.RecordTTL,
			Location: cfg.Battle.Location(),
		}, logger),
		Archive: archive.NewStore(db),
		Logger:  logging.OrNop(logger),
	}
}

// NewRootCommand 创建 arenactl 根命令。
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: OpenFromConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arenactl",
		Short: "Operate the dragon duel battle store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
