// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Lexicon   LexiconConfig   `mapstructure:"lexicon" yaml:"lexicon"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Extract   ExtractConfig   `mapstructure:"extract" yaml:"extract"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how to reach (or start) the browser under control.
// When Launch is false the Endpoint must point at an already-running
// debugging endpoint and the launcher is skipped entirely.
type BrowserConfig struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	Launch        bool          `mapstructure:"launch" yaml:"launch"`
	BinaryPath    string        `mapstructure:"binary_path" yaml:"binary_path"`
	UserDataDir   string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	RemotePort    int           `mapstructure:"remote_port" yaml:"remote_port"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Args          []string      `mapstructure:"args" yaml:"args"`
}

// ChatConfig identifies the target application inside the browser.
type ChatConfig struct {
	// BaseURL is matched as a substring against open tab URLs when picking
	// the page to attach to.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// NewTargetURL is opened when no tab matches BaseURL. Defaults to
	// BaseURL when empty.
	NewTargetURL string `mapstructure:"new_target_url" yaml:"new_target_url"`
}

// EngineConfig tunes the resolution engine's retry and timeout behavior.
type EngineConfig struct {
	Attempts      int           `mapstructure:"attempts" yaml:"attempts"`
	Deadline      time.Duration `mapstructure:"deadline" yaml:"deadline"`
	CallTimeout   time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// LexiconConfig extends the built-in label lists. Keys are semantic action
// names (send, delete, more, confirm, newchat); values are appended after
// the built-in labels so new locales are additive.
type LexiconConfig struct {
	ExtraLabels         map[string][]string `mapstructure:"extra_labels" yaml:"extra_labels"`
	PlaceholderPatterns []string            `mapstructure:"placeholder_patterns" yaml:"placeholder_patterns"`
}

// ArtifactsConfig controls post-run capture of screenshots and DOM snapshots.
type ArtifactsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	CaptureOnFailure bool   `mapstructure:"capture_on_failure" yaml:"capture_on_failure"`
	CaptureOnSuccess bool   `mapstructure:"capture_on_success" yaml:"capture_on_success"`
}

// JournalConfig enables the optional Postgres run journal.
type JournalConfig struct {
	DSN string `mapstructure:"dsn" yaml:"-"`
}

// ExtractConfig configures the optional LLM reply extraction.
type ExtractConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"-"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// SetDefaults establishes baseline configuration values on the given viper
// instance. Called before any config file or environment variables are read.
func SetDefaults(v *viper.Viper) {
	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// Browser defaults
	v.SetDefault("browser.endpoint", "http://127.0.0.1:9222")
	v.SetDefault("browser.launch", false)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.remote_port", 9222)
	v.SetDefault("browser.launch_timeout", "30s")

	// Chat defaults
	v.SetDefault("chat.base_url", "")
	v.SetDefault("chat.new_target_url", "")

	// Engine defaults
	v.SetDefault("engine.attempts", 3)
	v.SetDefault("engine.deadline", "45s")
	v.SetDefault("engine.call_timeout", "15s")
	v.SetDefault("engine.retry_interval", "2s")

	// Artifact defaults
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.capture_on_failure", true)
	v.SetDefault("artifacts.capture_on_success", false)

	// Extraction defaults
	v.SetDefault("extract.model", "gemini-2.5-flash")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("journal.dsn", "PAGEPILOT_JOURNAL_DSN")
	v.BindEnv("extract.api_key", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.Endpoint == "" && !c.Browser.Launch {
		return fmt.Errorf("browser.endpoint is required when browser.launch is false")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.Browser.Launch && c.Browser.RemotePort <= 0 {
		return fmt.Errorf("browser.remote_port must be a positive integer")
	}
	return nil
}

// Validate checks the engine's retry bounds.
func (e *EngineConfig) Validate() error {
	if e.Attempts <= 0 {
		return fmt.Errorf("attempts must be greater than 0")
	}
	if e.Deadline <= 0 {
		return fmt.Errorf("deadline must be a positive duration")
	}
	if e.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be a positive duration")
	}
	if e.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must not be negative")
	}
	return nil
}
