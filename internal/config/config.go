package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App     AppConfig     `toml:"app"`
	SQLite  SQLiteConfig  `toml:"sqlite"`
	Redis   RedisConfig   `toml:"redis"`
	Ollama  OllamaConfig  `toml:"ollama"`
	Context ContextConfig `toml:"context"`
	Storage StorageConfig `toml:"storage"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type RedisConfig struct {
	// Empty Addr disables the history cache.
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

type OllamaConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// RetryUnavailable permits one reconnect attempt when the model
	// service cannot be reached at the start of a turn.
	RetryUnavailable bool `toml:"retry_unavailable"`
}

type ContextConfig struct {
	MaxChars           int `toml:"max_chars"`
	MaxHistoryMessages int `toml:"max_history_messages"`
}

type StorageConfig struct {
	UploadDir string `toml:"upload_dir"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "studyai",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		SQLite: SQLiteConfig{
			Path: "data/studyai.db",
		},
		Redis: RedisConfig{
			Addr:                   "",
			Password:               "",
			DB:                     0,
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		Ollama: OllamaConfig{
			BaseURL:          "http://127.0.0.1:11434",
			Model:            "llama3.2:1b",
			TimeoutSeconds:   120,
			RetryUnavailable: true,
		},
		Context: ContextConfig{
			MaxChars:           12000,
			MaxHistoryMessages: 10,
		},
		Storage: StorageConfig{
			UploadDir: "data/uploads",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.SQLite.Path = getEnv("SQLITE_PATH", cfg.SQLite.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.Ollama.BaseURL = getEnv("OLLAMA_BASE_URL", cfg.Ollama.BaseURL)
	cfg.Ollama.Model = getEnv("OLLAMA_MODEL", cfg.Ollama.Model)
	cfg.Ollama.TimeoutSeconds = getEnvAsInt("OLLAMA_TIMEOUT_SECONDS", cfg.Ollama.TimeoutSeconds)
	if raw, ok := os.LookupEnv("OLLAMA_RETRY_UNAVAILABLE"); ok {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Ollama.RetryUnavailable = parsed
		}
	}

	cfg.Context.MaxChars = getEnvAsInt("CONTEXT_MAX_CHARS", cfg.Context.MaxChars)
	cfg.Context.MaxHistoryMessages = getEnvAsInt("CONTEXT_MAX_HISTORY_MESSAGES", cfg.Context.MaxHistoryMessages)

	cfg.Storage.UploadDir = getEnv("STORAGE_UPLOAD_DIR", cfg.Storage.UploadDir)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
