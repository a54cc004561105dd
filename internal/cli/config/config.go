package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the project-local config file, searched upwards from the working directory
	ConfigFileName = "shelf.yaml"

	configDirName  = "shelf"
	configFileName = "config.yaml"

	DefaultAPIURL = "http://localhost:8000/api"
)

// ErrNoConfigFile is returned by FindConfigFile when neither a project nor a user config exists
var ErrNoConfigFile = errors.New("no config file found")

// Config represents the CLI configuration
type Config struct {
	APIURL     string `yaml:"api_url" validate:"required,url"`
	TokenStore string `yaml:"token_store" validate:"oneof=keyring file sqlite memory"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error disabled"`
	// DataDir holds the file and sqlite token stores; empty means the user config dir
	DataDir string `yaml:"data_dir,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		APIURL:     DefaultAPIURL,
		TokenStore: "keyring",
		LogLevel:   "warn",
	}
}

// UserConfigPath returns ~/.config/shelf/config.yaml
func UserConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// FindConfigFile searches for shelf.yaml in the current directory and its parents,
// then falls back to the user config file
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	userPath, err := UserConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	}

	return "", ErrNoConfigFile
}

// Load reads a configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the config file,
// then SHELF_* variables from the environment or a .env file in the working directory.
// It returns the path of the file used, or "" when only defaults applied.
func Resolve() (*Config, string, error) {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	path, err := FindConfigFile()
	switch {
	case err == nil:
		cfg, err = Load(path)
		if err != nil {
			return nil, "", err
		}
	case errors.Is(err, ErrNoConfigFile):
		path = ""
	default:
		return nil, "", err
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// ApplyEnv overrides cfg with SHELF_API_URL, SHELF_TOKEN_STORE, SHELF_LOG_LEVEL and SHELF_DATA_DIR
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("SHELF_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("SHELF_TOKEN_STORE"); v != "" {
		cfg.TokenStore = v
	}
	if v := os.Getenv("SHELF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SHELF_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

var validate = newValidator()

// newValidator reports fields by their yaml names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports every invalid field
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s (got %q)", fe.Field(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s (got %q)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// TokenScope is the key the token stores separate servers by
func (c *Config) TokenScope() string {
	return strings.TrimPrefix(strings.TrimPrefix(c.APIURL, "https://"), "http://")
}

// Save writes the configuration to path, creating parent directories
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
