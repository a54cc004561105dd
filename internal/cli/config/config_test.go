package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME and the working directory at fresh temp dirs and clears SHELF_* variables
func isolate(t *testing.T) (home, work string) {
	t.Helper()

	home = t.TempDir()
	work = t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"SHELF_API_URL", "SHELF_TOKEN_STORE", "SHELF_LOG_LEVEL", "SHELF_DATA_DIR"} {
		t.Setenv(key, "")
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })

	return home, work
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestResolve_Defaults(t *testing.T) {
	isolate(t)

	cfg, path, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config path, got %s", path)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("expected default API URL, got %s", cfg.APIURL)
	}
	if cfg.TokenStore != "keyring" {
		t.Errorf("expected keyring token store, got %s", cfg.TokenStore)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected warn log level, got %s", cfg.LogLevel)
	}
}

func TestResolve_UserConfig(t *testing.T) {
	home, _ := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "shelf", "config.yaml"),
		"api_url: https://library.example.edu/api/\ntoken_store: file\n")

	cfg, path, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(".config", "shelf", "config.yaml")) {
		t.Errorf("unexpected config path %s", path)
	}
	if cfg.APIURL != "https://library.example.edu/api" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIURL)
	}
	if cfg.TokenStore != "file" {
		t.Errorf("expected file token store, got %s", cfg.TokenStore)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("defaults should fill missing keys, got log level %q", cfg.LogLevel)
	}
}

func TestResolve_ProjectFileWinsOverUserConfig(t *testing.T) {
	home, work := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "shelf", "config.yaml"), "api_url: https://user.example.com/api\n")
	writeFile(t, filepath.Join(work, ConfigFileName), "api_url: https://project.example.com/api\n")

	nested := filepath.Join(work, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	cfg, _, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.APIURL != "https://project.example.com/api" {
		t.Errorf("expected project config, got %s", cfg.APIURL)
	}
}

func TestResolve_EnvOverrides(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ConfigFileName), "api_url: https://project.example.com/api\n")
	t.Setenv("SHELF_API_URL", "http://127.0.0.1:9000/api")
	t.Setenv("SHELF_TOKEN_STORE", "memory")

	cfg, _, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9000/api" {
		t.Errorf("expected env API URL, got %s", cfg.APIURL)
	}
	if cfg.TokenStore != "memory" {
		t.Errorf("expected memory token store, got %s", cfg.TokenStore)
	}
}

func TestResolve_DotEnv(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ".env"), "SHELF_LOG_LEVEL=debug\n")
	t.Cleanup(func() { os.Unsetenv("SHELF_LOG_LEVEL") })
	os.Unsetenv("SHELF_LOG_LEVEL")

	cfg, _, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level from .env, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.APIURL = "" }, "api_url is required"},
		{"bad url", func(c *Config) { c.APIURL = "not a url" }, "api_url is not a valid url"},
		{"bad token store", func(c *Config) { c.TokenStore = "vault" }, "token_store must be one of"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{APIURL: "https://library.example.edu/api", TokenStore: "sqlite", LogLevel: "info", DataDir: "/var/lib/shelf"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "api_url: [unclosed\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestTokenScope(t *testing.T) {
	cfg := &Config{APIURL: "https://library.example.edu/api"}
	if got := cfg.TokenScope(); got != "library.example.edu/api" {
		t.Errorf("unexpected scope %q", got)
	}
}
