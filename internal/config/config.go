// Package config handles configuration loading, validation, and management for kolom.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete kolom configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Font used by the candidate window.
	Font FontConfig `toml:"font" json:"font" yaml:"font"`

	// Colors used by the candidate window, as hex strings.
	Colors ColorsConfig `toml:"colors" json:"colors" yaml:"colors"`

	// Layout controls candidate window orientation.
	Layout LayoutConfig `toml:"layout" json:"layout" yaml:"layout"`

	// Behavior toggles forwarded to the suggestion engine.
	Behavior BehaviorConfig `toml:"behavior" json:"behavior" yaml:"behavior"`

	// Engine locates the out-of-process suggestion engine.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// History configures the local selection history store.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// FontConfig holds the candidate window font.
type FontConfig struct {
	// Family is the font family name, e.g. "Kalpurush".
	Family string `toml:"family" json:"family" yaml:"family"`

	// PointSize is the font size in points. Device pixel size is
	// derived from this once per window creation using the DPI scale.
	PointSize float64 `toml:"point_size" json:"point_size" yaml:"point_size"`
}

// ColorsConfig holds the six candidate window colors as hex strings
// ("#RGB", "#RRGGBB" or "#RRGGBBAA").
type ColorsConfig struct {
	// Candidate is the text color of unhighlighted candidates.
	Candidate string `toml:"candidate" json:"candidate" yaml:"candidate"`

	// Index is the text color of the numeric index labels.
	Index string `toml:"index" json:"index" yaml:"index"`

	// Background is the window background fill.
	Background string `toml:"background" json:"background" yaml:"background"`

	// Clip is the thin strip along the window edge.
	Clip string `toml:"clip" json:"clip" yaml:"clip"`

	// Highlight is the fill behind the highlighted candidate.
	Highlight string `toml:"highlight" json:"highlight" yaml:"highlight"`

	// Highlighted is the text color of the highlighted candidate.
	// Empty means pick black or white against Highlight automatically.
	Highlighted string `toml:"highlighted" json:"highlighted" yaml:"highlighted"`
}

// LayoutConfig holds candidate window layout settings.
type LayoutConfig struct {
	// Vertical selects a vertical list instead of a horizontal row.
	Vertical bool `toml:"vertical" json:"vertical" yaml:"vertical"`
}

// BehaviorConfig holds typing behavior toggles. These are passed to the
// suggestion engine when a session opens; the composing core itself
// only consumes RestoreSelection.
type BehaviorConfig struct {
	// IncludeEnglish asks the engine to keep the raw English typing
	// among the candidates.
	IncludeEnglish bool `toml:"include_english" json:"include_english" yaml:"include_english"`

	// SmartQuote converts straight quotes to typographic ones.
	SmartQuote bool `toml:"smart_quote" json:"smart_quote" yaml:"smart_quote"`

	// RestoreSelection re-highlights the previously chosen candidate
	// when the same ambiguous input reappears.
	RestoreSelection bool `toml:"restore_selection" json:"restore_selection" yaml:"restore_selection"`
}

// EngineConfig locates the suggestion engine service on the session bus.
type EngineConfig struct {
	// BusName is the well-known D-Bus name of the engine service.
	BusName string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`

	// ObjectPath is the engine object path.
	ObjectPath string `toml:"object_path" json:"object_path" yaml:"object_path"`

	// CallTimeoutMs bounds each engine call. Engine calls are expected
	// to return in well under a millisecond; this is a safety net.
	CallTimeoutMs int `toml:"call_timeout_ms" json:"call_timeout_ms" yaml:"call_timeout_ms"`

	// LayoutDir is the directory holding keyboard layout definitions.
	LayoutDir string `toml:"layout_dir" json:"layout_dir" yaml:"layout_dir"`

	// LayoutName is the active layout, by file base name.
	LayoutName string `toml:"layout_name" json:"layout_name" yaml:"layout_name"`
}

// HistoryConfig configures the local candidate selection history.
type HistoryConfig struct {
	// Enabled turns selection recording on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetainDays is how long selections are kept. 0 keeps forever.
	RetainDays int `toml:"retain_days" json:"retain_days" yaml:"retain_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// LogTypedText permits user input to appear in logs. Off unless a
	// debugging session deliberately needs it.
	LogTypedText bool `toml:"log_typed_text" json:"log_typed_text" yaml:"log_typed_text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := KolomDir()

	return &Config{
		Version: Version,
		Font: FontConfig{
			Family:    "Kalpurush",
			PointSize: 12,
		},
		Colors: ColorsConfig{
			Candidate:   "#1A1A1A",
			Index:       "#7A7A7A",
			Background:  "#FCFCFC",
			Clip:        "#217A52",
			Highlight:   "#D3E8DE",
			Highlighted: "",
		},
		Layout: LayoutConfig{
			Vertical: false,
		},
		Behavior: BehaviorConfig{
			IncludeEnglish:   false,
			SmartQuote:       true,
			RestoreSelection: true,
		},
		Engine: EngineConfig{
			BusName:       "org.kolom.Engine1",
			ObjectPath:    "/org/kolom/Engine1",
			CallTimeoutMs: 500,
			LayoutDir:     filepath.Join(dir, "layouts"),
			LayoutName:    "avrophonetic",
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(dir, "history.db"),
			RetainDays: 180,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(dir, "kolom.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.History.Path),
		filepath.Dir(c.Logging.FilePath),
		c.Engine.LayoutDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// KolomDir returns the base kolom data directory.
// Uses platform-specific paths or KOLOM_DATA_DIR environment override.
func KolomDir() string {
	if envDir := os.Getenv("KOLOM_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides.
// Variables are prefixed with KOLOM_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("KOLOM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KOLOM_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("KOLOM_ENGINE_BUS"); v != "" {
		c.Engine.BusName = v
	}
	if v := os.Getenv("KOLOM_LAYOUT_DIR"); v != "" {
		c.Engine.LayoutDir = v
	}
	if v := os.Getenv("KOLOM_LAYOUT"); v != "" {
		c.Engine.LayoutName = v
	}
	if v := os.Getenv("KOLOM_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version:  c.Version,
		Font:     c.Font,
		Colors:   c.Colors,
		Layout:   c.Layout,
		Behavior: c.Behavior,
		Engine:   c.Engine,
		History:  c.History,
		Logging:  c.Logging,
	}
	return &clone
}

// SaveConfig writes the configuration to path in TOML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
