package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for modq.
type Config struct {
	ReviewerID    int64  `toml:"reviewer_id"`
	BaseDir       string `toml:"base_dir"`
	LogDir        string `toml:"log_dir"`
	LogLevel      string `toml:"log_level"`      // debug, info (default), warn, error
	SecretTrigger string `toml:"secret_trigger"` // hidden command, without the slash
	FlushInterval string `toml:"flush_interval"` // Go duration, default 60s

	Channel    ChannelConfig    `toml:"channel"`
	Store      StoreConfig      `toml:"store"`
	Encryption EncryptionConfig `toml:"encryption"`
	HTTP       HTTPConfig       `toml:"http"`
}

// ChannelConfig selects the chat transport.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ChannelConfig struct {
	Type string `toml:"type"` // "telegram" or "log"

	// Telegram-specific fields (only used when Type == "telegram")
	Token       string `toml:"token,omitempty"`
	PollTimeout int    `toml:"poll_timeout,omitempty"` // long-poll timeout in seconds, default 30
	Debug       bool   `toml:"debug,omitempty"`
}

// StoreConfig selects the durable table store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "sqlite", "redis" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`

	// SQLite-specific fields (only used when Type == "sqlite")
	Path string `toml:"path,omitempty"`

	// Redis-specific fields (only used when Type == "redis")
	URL       string `toml:"url,omitempty"`
	KeyPrefix string `toml:"key_prefix,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	Bucket    string `toml:"bucket,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Region    string `toml:"region,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
}

// EncryptionConfig controls encryption of table blobs at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// HTTPConfig controls the operational HTTP endpoint. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(reviewerID int64, baseDir string) *Config {
	return &Config{
		ReviewerID:    reviewerID,
		BaseDir:       baseDir,
		LogDir:        filepath.Join(baseDir, "log"),
		LogLevel:      "info",
		FlushInterval: "60s",
		Channel:       ChannelConfig{Type: "telegram", PollTimeout: 30},
		Store: StoreConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "modq.db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "modq.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "modq.key"),
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:9464"},
	}
}

// Interval returns the parsed flush interval, or 60s when unset.
func (c *Config) Interval() (time.Duration, error) {
	if c.FlushInterval == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing flush_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("flush_interval must be positive, got %s", d)
	}
	return d, nil
}

// Validate checks the tagged unions and required fields.
func (c *Config) Validate() error {
	switch c.Channel.Type {
	case "telegram":
		if c.Channel.Token == "" {
			return fmt.Errorf("telegram channel requires a token (set BOT_TOKEN)")
		}
	case "log":
	default:
		return fmt.Errorf("unknown channel type: %q", c.Channel.Type)
	}

	switch c.Store.Type {
	case "memory":
	case "filesystem":
		if c.Store.Dir == "" {
			return fmt.Errorf("filesystem store requires dir to be set")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("sqlite store requires path to be set")
		}
	case "redis":
		if c.Store.URL == "" {
			return fmt.Errorf("redis store requires url to be set")
		}
	case "s3":
		if c.Store.Bucket == "" {
			return fmt.Errorf("s3 store requires bucket to be set")
		}
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}

	switch c.Encryption.Type {
	case "", "none", "test":
	case "age":
		if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
			return fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
	default:
		return fmt.Errorf("unknown encryption type: %q", c.Encryption.Type)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level: %q", c.LogLevel)
	}

	if _, err := c.Interval(); err != nil {
		return err
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold a bot token, so it is created owner-readable only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
