package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sharehub/pkg/types"

	"github.com/caarlos0/env/v11"
)

// Config carries everything the server needs at startup: where to listen,
// where the data root lives, how the category directories are named, and
// the server's own identity.
type Config struct {
	Address         string   `json:"address" env:"SHAREHUB_ADDRESS" envDefault:":9010"`
	DataDir         string   `json:"data_dir" env:"SHAREHUB_DATA_DIR" envDefault:"./data"`
	Categories      []string `json:"categories" env:"SHAREHUB_CATEGORIES" envSeparator:"," envDefault:"documents,images,music,videos,others"`
	ControlFileName string   `json:"control_file_name" env:"SHAREHUB_CONTROL_FILE" envDefault:"content.json"`
	ClientsFileName string   `json:"clients_file_name" env:"SHAREHUB_CLIENTS_FILE" envDefault:"clients.json"`
	TokenLength     int      `json:"token_length" env:"SHAREHUB_TOKEN_LENGTH" envDefault:"16"`
	ServerEmail     string   `json:"server_email" env:"SHAREHUB_SERVER_EMAIL" envDefault:"server@sharehub.local"`
	ServerName      string   `json:"server_name" env:"SHAREHUB_SERVER_NAME" envDefault:"Server"`

	Mail MailConfig `json:"mail"`
}

// MailConfig configures the outbound notification mailer. When disabled,
// notifications are only logged.
type MailConfig struct {
	Enabled  bool   `json:"enabled" env:"SHAREHUB_MAIL_ENABLED" envDefault:"false"`
	Host     string `json:"host" env:"SHAREHUB_MAIL_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `json:"port" env:"SHAREHUB_MAIL_PORT" envDefault:"587"`
	Username string `json:"username" env:"SHAREHUB_MAIL_USERNAME"`
	Password string `json:"password" env:"SHAREHUB_MAIL_PASSWORD"`
	From     string `json:"from" env:"SHAREHUB_MAIL_FROM"`
}

// LoadConfig reads a JSON config file and fills unset fields from the
// environment and defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a config from environment variables and defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, category := range c.Categories {
		if category == "" {
			return fmt.Errorf("category names must not be empty")
		}
		if seen[category] {
			return fmt.Errorf("duplicate category %q", category)
		}
		seen[category] = true
	}
	if c.TokenLength < 8 {
		return fmt.Errorf("token length must be at least 8, got %d", c.TokenLength)
	}
	if c.Mail.Enabled && c.Mail.Host == "" {
		return fmt.Errorf("mail host is required when mail is enabled")
	}
	return nil
}

// ServerIdentity returns the identity the server registers itself under.
func (c *Config) ServerIdentity() types.Identity {
	return types.Identity{
		Email:       c.ServerEmail,
		DisplayName: c.ServerName,
		RootPath:    c.DataDir,
	}
}
