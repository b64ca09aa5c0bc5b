package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ClientConfig configures cmd/client. Values come from an optional TOML file
// (TASKSYNC_CLIENT_CONFIG) and are then overridden by env.
type ClientConfig struct {
	ModifyURL string `toml:"modify_url"`
	NotifyURL string `toml:"notify_url"`
	LogLevel  string `toml:"log_level"`
	LogJSON   bool   `toml:"log_json"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ModifyURL: "http://127.0.0.1:8080",
		NotifyURL: "ws://127.0.0.1:8081/ws",
		LogLevel:  "warn",
	}
}

func LoadClient() (ClientConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultClientConfig()
	if path := os.Getenv("TASKSYNC_CLIENT_CONFIG"); path != "" {
		if err := LoadClientFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	cfg.ModifyURL = getEnv("TASKSYNC_MODIFY_URL", cfg.ModifyURL)
	cfg.NotifyURL = getEnv("TASKSYNC_NOTIFY_URL", cfg.NotifyURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true"
	}
	return cfg, nil
}

// LoadClientFile decodes path over cfg; keys missing from the file keep
// their current values.
func LoadClientFile(cfg *ClientConfig, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode client config %s: %w", path, err)
	}
	if cfg.ModifyURL == "" || cfg.NotifyURL == "" {
		return fmt.Errorf("client config %s: modify_url and notify_url are required", path)
	}
	return nil
}
