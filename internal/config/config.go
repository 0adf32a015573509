package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	API         APIConfig
	Search      SearchConfig
	Transitions TransitionsConfig
	Advanced    AdvancedConfig
	Import      ImportConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	// Token enables bearer auth on the HTTP API when non-empty.
	Token string
}

type SearchConfig struct {
	// KeywordsFile is a whitelist file, one keyword per line. When empty the
	// whitelist is built from the stored posting keywords.
	KeywordsFile string
}

type TransitionsConfig struct {
	Limit int
}

type AdvancedConfig struct {
	PageSize int
}

type ImportConfig struct {
	PostingsFile string
	PayrollFile  string
	UsersFile    string
	// Schedule is a cron spec for refreshing the datasets while serving.
	// Empty disables the refresh.
	Schedule string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Transitions: TransitionsConfig{
			Limit: 5,
		},
		Advanced: AdvancedConfig{
			PageSize: 25,
		},
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Load reads configuration from defaults, the JSON file at
// $XDG_CONFIG_HOME/careerscope/config.json, a .env file in the working
// directory, and CAREERSCOPE_* environment variables, later layers winning.
func Load() (Config, error) {
	dotenv, err := readDotEnv(DotEnvFile)
	if err != nil {
		return Config{}, err
	}
	b, err := openFileBackend(configFilePath())
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, overlay(dotenv, os.Getenv))
}

// readDotEnv parses path. A missing file yields no values.
func readDotEnv(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vals, nil
}

// overlay returns a lookup preferring the process environment over dotenv.
func overlay(dotenv map[string]string, getenv func(string) string) func(string) string {
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
}

func loadWith(b ConfigBackend, getenv func(string) string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg, getenv)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d is out of range", c.Server.Port)
	}
	if c.Transitions.Limit < 1 {
		return fmt.Errorf("invalid config: transitions.limit must be positive, got %d", c.Transitions.Limit)
	}
	if c.Advanced.PageSize < 1 {
		return fmt.Errorf("invalid config: advanced.page_size must be positive, got %d", c.Advanced.PageSize)
	}
	return nil
}
