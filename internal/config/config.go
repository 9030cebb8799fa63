// Package config loads runtime configuration from environment variables, an
// optional YAML file, and CLI flags, following the teacher's
// internal/config + cmd/ viper wiring.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration. Load reads it through its own
// viper instance, so flags bound on the global viper with viper.BindPFlag
// reach a Config only where a command copies them over after Load.
type Config struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"logFormat"`
	LogFile   string `mapstructure:"logFile"`

	DAGsDir string `mapstructure:"dagsDir"`

	// SchedulerDSN is the relational store DSN for scheduled tasks, e.g.
	// "sqlite:///var/lib/taskrunner/scheduler.db". The store opens it with the
	// sqlite driver only.
	SchedulerDSN string `mapstructure:"schedulerDsn"`

	// MaxConcurrent is the default DAG executor concurrency cap.
	MaxConcurrent int `mapstructure:"maxConcurrent"`

	// DefaultTimeoutMS is the default per-task timeout in milliseconds.
	DefaultTimeoutMS int `mapstructure:"defaultTimeoutMs"`

	// VaultAddr, if set, configures the hashicorp/vault credential store
	// adapter instead of the in-memory one.
	VaultAddr  string `mapstructure:"vaultAddr"`
	VaultToken string `mapstructure:"vaultToken"`

	// RedisAddr, if set, makes the rate-limit registry write header-driven
	// limits to Redis. Buckets still live in process memory; nothing reads
	// the stored limits back.
	RedisAddr string `mapstructure:"redisAddr"`

	// Minio* configure the object-storage client backing the scheduler's
	// "file" action type. MinioEndpoint empty means the action is
	// unavailable (runFile returns an error).
	MinioEndpoint  string `mapstructure:"minioEndpoint"`
	MinioAccessKey string `mapstructure:"minioAccessKey"`
	MinioSecretKey string `mapstructure:"minioSecretKey"`
	MinioUseSSL    bool   `mapstructure:"minioUseSsl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("logFormat", "text")
	v.SetDefault("dagsDir", "./dags")
	v.SetDefault("schedulerDsn", "sqlite://scheduler.db")
	v.SetDefault("maxConcurrent", 5)
	v.SetDefault("defaultTimeoutMs", 300_000)
}

// Load reads configuration from (in increasing priority) defaults, a config
// file named taskrunner.yaml on the standard search path, and TASKRUNNER_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("taskrunner")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/taskrunner")
	v.AddConfigPath("/etc/taskrunner")

	v.SetEnvPrefix("TASKRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
