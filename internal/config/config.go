package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all DigiBox configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// AI location inference
	AI AIConfig `yaml:"ai"`

	// Startup region lookup used to pick the default provider
	Region RegionConfig `yaml:"region"`

	// Local persistence
	Storage StorageConfig `yaml:"storage"`

	UI UIConfig `yaml:"ui"`

	Logging LoggingConfig `yaml:"logging"`
}

// AIConfig configures the two inference providers.
type AIConfig struct {
	// Provider forces a selection: "" lets region detection decide,
	// otherwise "gemini" or "openai".
	Provider string `yaml:"provider"`

	// GeminiAPIKey is only ever taken from the environment.
	GeminiAPIKey string `yaml:"-"`
	GeminiModel  string `yaml:"gemini_model"`

	// Defaults for the OpenAI-compatible provider. The key itself lives in
	// the local store, never in this file.
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	Timeout string `yaml:"timeout"`
}

// RegionConfig configures region detection.
type RegionConfig struct {
	Enabled   bool     `yaml:"enabled"`
	LookupURL string   `yaml:"lookup_url"`
	Timeout   string   `yaml:"timeout"`
	Country   string   `yaml:"country"`    // country code that selects the alternate provider
	TimeZones []string `yaml:"time_zones"` // fallback zones that select it as an estimate
}

// StorageConfig configures the local key-value store.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	Database string `yaml:"database"`
}

// UIConfig configures the interactive interface.
type UIConfig struct {
	Theme     string `yaml:"theme"` // stereo, flat
	AltScreen bool   `yaml:"alt_screen"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultDataDir returns the per-user data directory, falling back to ./.digibox.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "digibox")
	}
	return ".digibox"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "DigiBox",
		Version: "1.0.0",

		AI: AIConfig{
			GeminiModel:   "gemini-2.5-flash",
			OpenAIBaseURL: "https://api.openai.com/v1",
			OpenAIModel:   "gpt-4o-mini",
			Timeout:       "60s",
		},

		Region: RegionConfig{
			Enabled:   true,
			LookupURL: "https://ipapi.co/json/",
			Timeout:   "5s",
			Country:   "CN",
			TimeZones: []string{"Asia/Shanghai", "Asia/Chongqing"},
		},

		Storage: StorageConfig{
			DataDir:  DefaultDataDir(),
			Database: "digibox.db",
		},

		UI: UIConfig{
			Theme:     "stereo",
			AltScreen: true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location inside the data directory.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// A .env file in the working directory is loaded first so its variables take
// part in the environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Gemini credential, lowest priority first
	for _, name := range []string{"API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			c.AI.GeminiAPIKey = key
		}
	}

	if p := os.Getenv("DIGIBOX_PROVIDER"); p != "" {
		c.AI.Provider = p
	}
	if url := os.Getenv("DIGIBOX_OPENAI_BASE_URL"); url != "" {
		c.AI.OpenAIBaseURL = url
	}
	if model := os.Getenv("DIGIBOX_OPENAI_MODEL"); model != "" {
		c.AI.OpenAIModel = model
	}
	if dir := os.Getenv("DIGIBOX_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if v := os.Getenv("DIGIBOX_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// DatabasePath returns the absolute location of the SQLite file.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.Database) {
		return c.Storage.Database
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.Database)
}

// LogsDir returns where category log files are written.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Storage.DataDir, "logs")
}

// GetAITimeout returns the provider request timeout as a duration.
func (c *Config) GetAITimeout() time.Duration {
	d, err := time.ParseDuration(c.AI.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetRegionTimeout returns the region lookup timeout as a duration.
func (c *Config) GetRegionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Region.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ValidProviders lists the supported provider selections.
var ValidProviders = []string{"", "gemini", "openai"}

// ValidThemes lists the supported visual themes.
var ValidThemes = []string{"stereo", "flat"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.AI.Provider) {
		return fmt.Errorf("invalid AI provider: %q (valid: gemini, openai or empty for auto)", c.AI.Provider)
	}
	if !contains(ValidThemes, c.UI.Theme) {
		return fmt.Errorf("invalid theme: %q (valid: %v)", c.UI.Theme, ValidThemes)
	}
	if _, err := time.ParseDuration(c.AI.Timeout); err != nil {
		return fmt.Errorf("invalid ai.timeout %q: %w", c.AI.Timeout, err)
	}
	if c.Region.Enabled && c.Region.LookupURL == "" {
		return fmt.Errorf("region lookup enabled without lookup_url")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
