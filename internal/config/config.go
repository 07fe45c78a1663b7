package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig `json:"server"`
	Client   ClientConfig `json:"client"`
	LogLevel string       `json:"log_level"`
}

// ServerConfig represents the API server configuration
type ServerConfig struct {
	Port               int      `json:"port"`
	JWTSecret          string   `json:"jwt_secret"`
	TokenTTL           Duration `json:"token_ttl"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	SettlementInterval Duration `json:"settlement_interval"`
}

// ClientConfig represents the CLI client configuration
type ClientConfig struct {
	APIBaseURL     string   `json:"api_base_url"`
	RequestTimeout Duration `json:"request_timeout"`
	TokenFile      string   `json:"token_file"`
	ActiveInterval Duration `json:"active_interval"`
	IdleInterval   Duration `json:"idle_interval"`
}

// Duration is a time.Duration written as "1s", "5m" or a number of seconds in JSON
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", val, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("config: invalid duration %s", string(b))
	}
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			JWTSecret:          "bidbazaar-dev-secret",
			TokenTTL:           Duration{24 * time.Hour},
			RateLimitPerMinute: 600,
			SettlementInterval: Duration{time.Second},
		},
		Client: ClientConfig{
			APIBaseURL:     "http://localhost:8080",
			RequestTimeout: Duration{10 * time.Second},
			TokenFile:      defaultTokenFile(),
			ActiveInterval: Duration{time.Second},
			IdleInterval:   Duration{time.Minute},
		},
		LogLevel: "info",
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bidbazaar-token"
	}
	return filepath.Join(dir, "bidbazaar", "token")
}

// Load reads the config file named by CONFIG_FILE (default configs/config.json)
// over the defaults, then applies environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	configFile := "configs/config.json"
	if envFile := os.Getenv("CONFIG_FILE"); envFile != "" {
		configFile = envFile
	}
	return LoadFile(configFile)
}

// LoadFile is Load with an explicit file path
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.Client.APIBaseURL = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.Client.RequestTimeout = Duration{d}
	}
	if v := os.Getenv("TOKEN_FILE"); v != "" {
		c.Client.TokenFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate rejects settings the programs cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Server.JWTSecret == "" {
		return errors.New("config: jwt_secret must not be empty")
	}
	if c.Server.TokenTTL.Duration <= 0 {
		return errors.New("config: token_ttl must be positive")
	}
	if c.Client.ActiveInterval.Duration <= 0 || c.Client.IdleInterval.Duration <= 0 {
		return errors.New("config: tracker intervals must be positive")
	}
	if c.Client.RequestTimeout.Duration <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	return nil
}

// Addr returns the server listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
