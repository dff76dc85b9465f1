package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const consoleEnvPrefix = "ORDERS_CONSOLE"

// Console configures the orders-console client.
type Console struct {
	APIBase        string        `mapstructure:"api_base"`
	WSBase         string        `mapstructure:"ws_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Users          Users         `mapstructure:"users"`
}

// Users selects where the known-users list lives.
type Users struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	Key       string `mapstructure:"key"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// DefaultUsersPath is the file backend location when none is configured.
func DefaultUsersPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "orders-console", "known-users.json")
}

// LoadConsole reads defaults, then the optional YAML file at path, then
// ORDERS_CONSOLE_* environment variables (USERS_BACKEND for users.backend).
func LoadConsole(path string) (Console, error) {
	v := viper.New()
	v.SetDefault("api_base", "http://localhost:8080")
	v.SetDefault("ws_base", "ws://localhost:8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("users.backend", "file")
	v.SetDefault("users.path", DefaultUsersPath())
	v.SetDefault("users.key", "knownUsers")
	v.SetDefault("users.redis_addr", "localhost:6379")

	v.SetEnvPrefix(consoleEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Console{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Console
	if err := v.Unmarshal(&cfg); err != nil {
		return Console{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.WSBase = strings.TrimRight(cfg.WSBase, "/")
	if err := cfg.validate(); err != nil {
		return Console{}, err
	}
	return cfg, nil
}

func (c Console) validate() error {
	if c.APIBase == "" {
		return errors.New("api_base must not be empty")
	}
	if c.WSBase == "" {
		return errors.New("ws_base must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	switch c.Users.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unknown users backend %q", c.Users.Backend)
	}
	return nil
}
