package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Worker  WorkerConfig
	Library LibraryConfig
	Credits CreditsConfig
	Polling PollingConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// WorkerConfig points at the remote clip-generation worker API.
type WorkerConfig struct {
	BaseURL string
	APIKey  string
}

// LibraryConfig points at the media library service that owns source assets.
type LibraryConfig struct {
	BaseURL string
	APIKey  string
}

// CreditsConfig drives the ledger guard. UnitCost is credits per produced
// clip; MaxClipsPerJob is the conservative ceiling used only for the
// pre-flight estimate, never for settlement.
type CreditsConfig struct {
	UnitCost       int
	MaxClipsPerJob int
}

type PollingConfig struct {
	Interval      time.Duration
	AttemptBudget int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("worker.base_url", "http://localhost:8090")
	viper.SetDefault("worker.api_key", "")
	viper.SetDefault("library.base_url", "http://localhost:8091")
	viper.SetDefault("library.api_key", "")
	viper.SetDefault("credits.unit_cost", 1)
	viper.SetDefault("credits.max_clips_per_job", 15)
	viper.SetDefault("polling.interval", "2s")
	viper.SetDefault("polling.attempt_budget", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Worker: WorkerConfig{
			BaseURL: viper.GetString("worker.base_url"),
			APIKey:  viper.GetString("worker.api_key"),
		},
		Library: LibraryConfig{
			BaseURL: viper.GetString("library.base_url"),
			APIKey:  viper.GetString("library.api_key"),
		},
		Credits: CreditsConfig{
			UnitCost:       viper.GetInt("credits.unit_cost"),
			MaxClipsPerJob: viper.GetInt("credits.max_clips_per_job"),
		},
		Polling: PollingConfig{
			Interval:      viper.GetDuration("polling.interval"),
			AttemptBudget: viper.GetInt("polling.attempt_budget"),
		},
	}

	return cfg, nil
}
