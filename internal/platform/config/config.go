package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 与 config.yaml 的结构一一对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig 保存HTTP服务的配置。
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 列出允许从浏览器调用API的来源。
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// RedisConfig 是所有战斗提交到的共享存储。
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"poolSize"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
}

// DatabaseConfig 选择归档使用的SQL后端。
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// BattleConfig 调整回合引擎和持久化网关。
type BattleConfig struct {
	CommitTimeout      time.Duration `mapstructure:"commitTimeout"`
	CommitRetries      int           `mapstructure:"commitRetries"`
	RecordTTL          time.Duration `mapstructure:"recordTTL"`
	EventLogMaxLen     int64         `mapstructure:"eventLogMaxLen"`
	EventQueueSize     int           `mapstructure:"eventQueueSize"`
	EventAppendTimeout time.Duration `mapstructure:"eventAppendTimeout"`
	TokenSecret        string        `mapstructure:"tokenSecret"`
	Timezone           string        `mapstructure:"timezone"`
	SessionIdleTimeout time.Duration `mapstructure:"sessionIdleTimeout"`
	JanitorInterval    time.Duration `mapstructure:"janitorInterval"`
	StartLimit         int64         `mapstructure:"startLimit"`
	StartWindow        time.Duration `mapstructure:"startWindow"`
}

// ArchiveConfig 控制后台对账器。
type ArchiveConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcileInterval"`
	ReconcileBatch    int64         `mapstructure:"reconcileBatch"`
}

// HealthConfig 控制Redis重启检测。
type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"checkInterval"`
}

// LoggingConfig 控制 zap 日志。
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 30)
	v.SetDefault("redis.dialTimeout", 5*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "arena.db")

	v.SetDefault("battle.commitTimeout", 5*time.Second)
	v.SetDefault("battle.commitRetries", 3)
	v.SetDefault("battle.recordTTL", 30*24*time.Hour)
	v.SetDefault("battle.eventLogMaxLen", 1000)
	v.SetDefault("battle.eventQueueSize", 4096)
	v.SetDefault("battle.eventAppendTimeout", 500*time.Millisecond)
	v.SetDefault("battle.timezone", "Asia/Taipei")
	v.SetDefault("battle.sessionIdleTimeout", 30*time.Minute)
	v.SetDefault("battle.janitorInterval", time.Minute)
	v.SetDefault("battle.startLimit", 30)
	v.SetDefault("battle.startWindow", time.Minute)

	v.SetDefault("archive.reconcileInterval", time.Minute)
	v.SetDefault("archive.reconcileBatch", 500)

	v.SetDefault("health.checkInterval", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig 从 ./config 或工作目录读取 config.yaml。
// 任意配置项都可以通过环境变量覆盖，例如 REDIS_ADDRESS。
// 文件不存在不算错误，此时使用默认值。
func LoadConfig() (*Config, error) {
	// .env 是可选的，用于本地开发环境
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 拒绝会导致战斗流程无法运行的配置。
func (c *Config) Validate() error {
	if c.Battle.CommitRetries < 1 {
		return fmt.Errorf("battle.commitRetries must be >= 1, got %d", c.Battle.CommitRetries)
	}
	if c.Battle.CommitTimeout <= 0 {
		return errors.New("battle.commitTimeout must be positive")
	}
	if c.Battle.EventLogMaxLen <= 0 {
		return errors.New("battle.eventLogMaxLen must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	return nil
}

// Location 解析配置的时区，失败时回退到UTC。
func (c BattleConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
