package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by resolveConfigPath when no default location has
// a config file. Load treats it as "use defaults".
var ErrNotFound = errors.New("no config file found")

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations; when none exists
// the defaults are returned.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path. The path is empty when defaults were used.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if errors.Is(err, ErrNotFound) {
		cfg := Defaults()
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
		resolvePaths(cfg)
		return cfg, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseDir = filepath.Dir(absPath)
	resolvePaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, absPath, nil
}

// resolvePaths makes relative paths relative to the config file's directory.
func resolvePaths(cfg *Config) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || cfg.BaseDir == "" {
			return p
		}
		return filepath.Join(cfg.BaseDir, p)
	}

	for i := range cfg.Import.Roots {
		cfg.Import.Roots[i] = abs(cfg.Import.Roots[i])
	}
	for i := range cfg.Interpreter.Prelude {
		cfg.Interpreter.Prelude[i] = abs(cfg.Interpreter.Prelude[i])
	}
	for i := range cfg.Watch.Dirs {
		cfg.Watch.Dirs[i] = abs(cfg.Watch.Dirs[i])
	}
	if out := cfg.Logging.Output; out != "stdout" && out != "stderr" {
		cfg.Logging.Output = abs(out)
	}
}

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Interpreter.MaxDepth <= 0 {
		errs = append(errs, fmt.Sprintf("interpreter.max_depth must be positive, got %d", cfg.Interpreter.MaxDepth))
	}

	if cfg.LLM.APIKey != "" {
		u, err := url.Parse(cfg.LLM.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("llm.endpoint must be an http(s) URL, got %q", cfg.LLM.Endpoint))
		}
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("llm.timeout must not be negative, got %s", cfg.LLM.Timeout))
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce))
	}

	if strings.TrimSpace(cfg.Logging.Output) == "" {
		errs = append(errs, "logging.output is required (stdout, stderr, or a file path)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// resolveConfigPath finds the config file to use.
// Order: explicit path, TSLISP_CONFIG, ./tslisp.yaml, ~/.config/tslisp/tslisp.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("TSLISP_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("TSLISP_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("tslisp.yaml"); err == nil {
		return "tslisp.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "tslisp", "tslisp.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", ErrNotFound
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}
