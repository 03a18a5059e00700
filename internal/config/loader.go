package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/spotwave/mediaops/internal/db"
)

// Config is the full runtime configuration for the server and worker.
type Config struct {
	DB      db.Config
	Server  ServerConfig
	Storage StorageConfig
	Ingest  IngestConfig
	Worker  WorkerConfig
}

type ServerConfig struct {
	Addr string
}

type StorageConfig struct {
	// Dir is the root directory for stored uploads.
	Dir string
}

type IngestConfig struct {
	// InlineThresholdBytes is the largest upload processed synchronously in
	// the request; anything bigger is handed to the background worker.
	InlineThresholdBytes int64
	// BatchSize bounds each bulk-insert chunk inside the import transaction.
	BatchSize int
}

type WorkerConfig struct {
	PollInterval time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Dir: "./data/uploads",
		},
		Ingest: IngestConfig{
			InlineThresholdBytes: 100 * 1024,
			BatchSize:            500,
		},
		Worker: WorkerConfig{
			PollInterval: 2 * time.Second,
		},
	}
}

// Load reads config.yaml from configPath, with environment overrides
// (MEDIAOPS_DATABASE_HOST, MEDIAOPS_SERVER_ADDR, ...). Missing files fall
// back to defaults.
func Load(configPath string, log *logrus.Logger) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("MEDIAOPS")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("storage.dir")
	v.BindEnv("ingest.inline_threshold_bytes")
	v.BindEnv("ingest.batch_size")
	v.BindEnv("worker.poll_interval")

	if err := v.ReadInConfig(); err != nil {
		log.Info("no config.yaml found, using defaults and env vars")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Info("loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("storage.dir") {
		cfg.Storage.Dir = v.GetString("storage.dir")
	}
	if v.IsSet("ingest.inline_threshold_bytes") {
		cfg.Ingest.InlineThresholdBytes = v.GetInt64("ingest.inline_threshold_bytes")
	}
	if v.IsSet("ingest.batch_size") {
		cfg.Ingest.BatchSize = v.GetInt("ingest.batch_size")
	}
	if v.IsSet("worker.poll_interval") {
		cfg.Worker.PollInterval = v.GetDuration("worker.poll_interval")
	}

	return cfg, nil
}
