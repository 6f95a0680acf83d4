package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) string { return "" }

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Interpreter.MaxDepth != 10000 {
		t.Errorf("expected default max_depth 10000, got %d", cfg.Interpreter.MaxDepth)
	}
	if cfg.Interpreter.SharedFrames {
		t.Error("expected shared_frames to default to false")
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Watch.Debounce != 100*time.Millisecond {
		t.Errorf("expected default debounce 100ms, got %s", cfg.Watch.Debounce)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "TEST_KEY":
			return "sk-123"
		case "TEST_MODEL":
			return "local"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "api_key: ${TEST_KEY}",
			expected: "api_key: sk-123",
		},
		{
			name:     "with default (env set)",
			input:    "model: ${TEST_MODEL:-gpt-4o-mini}",
			expected: "model: local",
		},
		{
			name:     "with default (env not set)",
			input:    "model: ${UNSET_VAR:-gpt-4o-mini}",
			expected: "model: gpt-4o-mini",
		},
		{
			name:     "unset without default",
			input:    "api_key: ${UNSET_VAR}",
			expected: "api_key: ",
		},
		{
			name:     "multiple substitutions",
			input:    "x: ${TEST_KEY}/${TEST_MODEL}",
			expected: "x: sk-123/local",
		},
		{
			name:     "no substitution needed",
			input:    "static: value",
			expected: "static: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tslisp.yaml")

	configContent := `
interpreter:
  shared_frames: true
  max_depth: 500
  prelude:
    - prelude.tsl
import:
  roots: [lib, /opt/tsl]
llm:
  model: small
  timeout: 10s
logging:
  output: out.log
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, path, err := LoadWithPath(configPath, noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != configPath {
		t.Errorf("expected path %q, got %q", configPath, path)
	}

	if !cfg.Interpreter.SharedFrames || cfg.Interpreter.MaxDepth != 500 {
		t.Errorf("interpreter config not loaded: %+v", cfg.Interpreter)
	}
	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
	if got := cfg.Interpreter.Prelude; len(got) != 1 || got[0] != filepath.Join(dir, "prelude.tsl") {
		t.Errorf("prelude not resolved: %v", got)
	}
	if got := cfg.Import.Roots; len(got) != 2 || got[0] != filepath.Join(dir, "lib") || got[1] != "/opt/tsl" {
		t.Errorf("roots not resolved: %v", got)
	}
	if cfg.Logging.Output != filepath.Join(dir, "out.log") {
		t.Errorf("output not resolved: %q", cfg.Logging.Output)
	}
	if cfg.LLM.Model != "small" || cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("llm config not loaded: %+v", cfg.LLM)
	}
	if cfg.LLM.Endpoint != Defaults().LLM.Endpoint {
		t.Errorf("expected default endpoint, got %q", cfg.LLM.Endpoint)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tslisp.yaml")
	configContent := `
llm:
  api_key: ${TSL_TEST_KEY}
  model: ${TSL_TEST_MODEL:-fallback}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	getenv := func(key string) string {
		if key == "TSL_TEST_KEY" {
			return "secret"
		}
		return ""
	}

	cfg, err := Load(configPath, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Errorf("expected api key 'secret', got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "fallback" {
		t.Errorf("expected model 'fallback', got %q", cfg.LLM.Model)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml"), noEnv); err == nil {
		t.Error("expected error for missing explicit path")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("interpreter: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(bad, noEnv)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("interpreter:\n  max_depth: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(invalid, noEnv)
	if err == nil || !strings.Contains(err.Error(), "max_depth") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "zero max depth",
			modify:  func(c *Config) { c.Interpreter.MaxDepth = 0 },
			wantErr: []string{"max_depth"},
		},
		{
			name: "bad endpoint with key",
			modify: func(c *Config) {
				c.LLM.APIKey = "k"
				c.LLM.Endpoint = "ftp://example.com"
			},
			wantErr: []string{"llm.endpoint"},
		},
		{
			name:   "bad endpoint without key is ignored",
			modify: func(c *Config) { c.LLM.Endpoint = "nonsense" },
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Watch.Debounce = -time.Second },
			wantErr: []string{"watch.debounce"},
		},
		{
			name: "every problem reported",
			modify: func(c *Config) {
				c.Interpreter.MaxDepth = -1
				c.Logging.Output = " "
				c.LLM.Timeout = -time.Second
			},
			wantErr: []string{"max_depth", "logging.output", "llm.timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := Validate(cfg)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	if _, err := resolveConfigPath("/nonexistent/path/tslisp.yaml", noEnv); err == nil {
		t.Error("expected error for nonexistent path")
	}

	_, err := resolveConfigPath("", noEnv)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	custom := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(custom, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	resolved, err := resolveConfigPath(custom, noEnv)
	if err != nil || resolved != custom {
		t.Errorf("explicit: got %q, %v", resolved, err)
	}

	getenv := func(key string) string {
		if key == "TSLISP_CONFIG" {
			return custom
		}
		return ""
	}
	resolved, err = resolveConfigPath("", getenv)
	if err != nil || resolved != custom {
		t.Errorf("TSLISP_CONFIG: got %q, %v", resolved, err)
	}

	xdg := filepath.Join(dir, ".config", "tslisp")
	if err := os.MkdirAll(xdg, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(xdg, "tslisp.yaml"), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	resolved, err = resolveConfigPath("", noEnv)
	if err != nil || resolved != filepath.Join(xdg, "tslisp.yaml") {
		t.Errorf("home config: got %q, %v", resolved, err)
	}

	if err := os.WriteFile("tslisp.yaml", []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	resolved, err = resolveConfigPath("", noEnv)
	if err != nil || resolved != "tslisp.yaml" {
		t.Errorf("local config: got %q, %v", resolved, err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	cfg, path, err := LoadWithPath("", noEnv)
	if err != nil {
		t.Fatalf("missing config should not be an error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
	if cfg.Interpreter.MaxDepth != 10000 {
		t.Errorf("expected defaults, got %+v", cfg.Interpreter)
	}
	if len(cfg.Import.Roots) != 1 || !filepath.IsAbs(cfg.Import.Roots[0]) {
		t.Errorf("expected the working directory as root, got %v", cfg.Import.Roots)
	}
}
