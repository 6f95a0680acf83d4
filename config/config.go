package config

import "time"

// Config represents the complete tslisp configuration
type Config struct {
	BaseDir     string            `yaml:"-"` // Directory containing config file, for resolving relative paths
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Import      ImportConfig      `yaml:"import"`
	LLM         LLMConfig         `yaml:"llm"`
	Logging     LoggingConfig     `yaml:"logging"`
	Watch       WatchConfig       `yaml:"watch"`
}

// InterpreterConfig holds evaluator switches
type InterpreterConfig struct {
	SharedFrames    bool          `yaml:"shared_frames"`     // Bind parameters into the closure's capture environment
	CopyClassTables bool          `yaml:"copy_class_tables"` // Give subclasses and instances their own property table
	MaxDepth        int           `yaml:"max_depth"`         // Closure call depth limit (default: 10000)
	Prelude         StringOrSlice `yaml:"prelude"`           // Scripts evaluated before the main script or REPL
}

// ImportConfig holds import resolution settings
type ImportConfig struct {
	Roots StringOrSlice `yaml:"roots"` // Directories import may read from (default: ".")
}

// LLMConfig holds settings for the LLM and AI builtins
type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"` // OpenAI-compatible chat completions URL
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"` // Usually ${OPENAI_API_KEY}; LLM is disabled when empty
	Timeout  time.Duration `yaml:"timeout"` // Per-request timeout (default: 60s)
	System   string        `yaml:"system"`  // Optional system prompt
}

// LoggingConfig holds display output settings
type LoggingConfig struct {
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// WatchConfig holds settings for --watch
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"` // Quiet period between re-runs (default: 100ms)
	Dirs     []string      `yaml:"dirs"`     // Extra directories to watch
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Interpreter: InterpreterConfig{
			MaxDepth: 10000,
		},
		Import: ImportConfig{
			Roots: StringOrSlice{"."},
		},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Output: "stdout",
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
	}
}
