package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvBotToken   = "BOT_TOKEN"
	EnvReviewerID = "ADMIN_ID"
	EnvRedisURL   = "MODQ_REDIS_URL"
)

// LoadDotEnv loads the first .env file found in dirs. Variables already set
// in the process environment win. A missing file is not an error.
func LoadDotEnv(dirs ...string) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return
		}
	}
}

// ApplyEnv overrides config values from the environment.
// MODQ_REDIS_URL also selects the redis store.
func ApplyEnv(cfg *Config) error {
	if token := os.Getenv(EnvBotToken); token != "" {
		cfg.Channel.Token = token
	}
	if raw := os.Getenv(EnvReviewerID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvReviewerID, err)
		}
		cfg.ReviewerID = id
	}
	if url := os.Getenv(EnvRedisURL); url != "" {
		cfg.Store.Type = "redis"
		cfg.Store.URL = url
	}
	return nil
}
