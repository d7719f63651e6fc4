package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Delivery modes for inbound events.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	Mode          string `json:"mode"`
	MaxConcurrent int    `json:"max_concurrent"`
	TempDir       string `json:"temp_dir"`
	Telegram      struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Webhook struct {
		Listen    string `json:"listen"`
		Path      string `json:"path"`
		PublicURL string `json:"public_url"`
	} `json:"webhook"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".resizebot"),
		LogLevel:      "info",
		Mode:          ModePolling,
		MaxConcurrent: 4,
		TempDir:       os.TempDir(),
	}
	cfg.Webhook.Listen = ":8443"
	cfg.Webhook.Path = "/webhook"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if publicURL := os.Getenv("RESIZEBOT_WEBHOOK_URL"); publicURL != "" {
		cfg.Webhook.PublicURL = publicURL
	}
	if listen := os.Getenv("RESIZEBOT_LISTEN"); listen != "" {
		cfg.Webhook.Listen = listen
	}

	return cfg, nil
}

// Validate checks the fields that serve cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Webhook.PublicURL == "" {
			return fmt.Errorf("webhook.public_url is required in webhook mode")
		}
		if c.Webhook.Listen == "" {
			return fmt.Errorf("webhook.listen is required in webhook mode")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.Mode)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config back to disk atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

// ListValues returns the config as a flat key -> value map. Secrets are
// masked when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	flat := Flatten(nested)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dot-separated key from the config file.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, IsSecretKey(key))
	if err != nil {
		return nil, err
	}
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue writes a single dot-separated key into the config file.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return err
	}
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	flat[key] = coerce(flat[key], value)

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("apply config value: %w", err)
	}
	return Save(path, updated)
}

// coerce converts the string form to match the existing value's JSON type.
func coerce(existing any, value string) any {
	switch existing.(type) {
	case float64:
		var n float64
		if _, err := fmt.Sscanf(value, "%g", &n); err == nil {
			return n
		}
	case bool:
		return value == "true"
	}
	return value
}
