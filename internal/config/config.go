package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// Config holds all scenekeeper configuration
type Config struct {
	Catalog   CatalogConfig `toml:"catalog"`
	Libraries LibraryConfig `toml:"libraries"`
	Matcher   MatcherConfig `toml:"matcher"`
	Rename    RenameConfig  `toml:"rename"`
	Daemon    DaemonConfig  `toml:"daemon"`
}

// CatalogConfig locates the scene database.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig defines the media library roots scanned for candidates.
type LibraryConfig struct {
	Paths []string `toml:"paths"`
}

// MatcherConfig tunes candidate scoring.
type MatcherConfig struct {
	Tolerance          int    `toml:"tolerance"`
	AutoApplyThreshold int    `toml:"auto_apply_threshold"`
	ProbeDurations     bool   `toml:"probe_durations"`
	FfprobeBinary      string `toml:"ffprobe_binary"`
}

// RenameConfig drives filename synthesis and relocation.
type RenameConfig struct {
	// KeyOrder lists metadata fields in the order they appear in the
	// synthesized name. Unknown fields are rejected at startup.
	KeyOrder []string `toml:"key_order"`
	// ExcludeKeys names fields left out of the synthesized name even when
	// key_order lists them.
	ExcludeKeys []string `toml:"exclude_keys"`
	// WrapperStyles maps a field to a two-character prefix/suffix pair,
	// e.g. "[]" or "()". Empty means no wrapping.
	WrapperStyles map[string]string `toml:"wrapper_styles"`
	Separator     string            `toml:"separator"`
	DateFormat    string            `toml:"date_format"`

	PerformerSort  bool `toml:"performer_sort"`
	PerformerLimit int  `toml:"performer_limit"`

	TagWhitelist []string `toml:"tag_whitelist"`
	MaxTagKeys   int      `toml:"max_tag_keys"`

	// StudioTemplates overrides the rendered studio label per studio.
	// Values may reference other fields as $title, $date and so on.
	StudioTemplates map[string]string `toml:"studio_templates"`
	DefaultStudio   string            `toml:"default_studio"`

	// Transformations rewrites a rendered field: each entry is
	// {field, pattern, replacement} applied in order, or a case directive
	// {field, case = "upper"|"lower"|"title"}.
	Transformations []Transformation `toml:"transformations"`

	// TagSpecificPaths routes scenes carrying a tag to a fixed directory,
	// taking precedence over studio-based relocation.
	TagSpecificPaths map[string]string `toml:"tag_specific_paths"`

	// ExcludePaths lists directory prefixes whose files are never touched.
	ExcludePaths []string `toml:"exclude_paths"`

	// AssociatedExts lists sidecar extensions moved and renamed together
	// with their video file.
	AssociatedExts []string `toml:"associated_exts"`

	EnableMove   bool `toml:"enable_move"`
	EnableRename bool `toml:"enable_rename"`
}

// Transformation rewrites one rendered field value.
type Transformation struct {
	Field       string `toml:"field"`
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`
	Case        string `toml:"case"` // upper, lower, title
}

// DaemonConfig holds daemon scheduling and behavior settings
type DaemonConfig struct {
	ScanFrequency    string `toml:"scan_frequency"`     // daily, weekly, biweekly
	ReportOnComplete bool   `toml:"report_on_complete"` // launch TUI on run complete
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Catalog: CatalogConfig{
			Path: filepath.Join(dataDir, "catalog.db"),
		},
		Libraries: LibraryConfig{
			Paths: []string{},
		},
		Matcher: MatcherConfig{
			Tolerance:          95,
			AutoApplyThreshold: 100,
			ProbeDurations:     true,
			FfprobeBinary:      "ffprobe",
		},
		Rename: RenameConfig{
			KeyOrder:       []string{"studio", "title", "date"},
			WrapperStyles:  map[string]string{"studio": "[]"},
			Separator:      "-",
			DateFormat:     "2006-01-02",
			PerformerSort:  true,
			PerformerLimit: 3,
			MaxTagKeys:     3,
			DefaultStudio:  "Default",
			AssociatedExts: []string{"srt", "vtt", "jpg", "png"},
			EnableMove:     true,
			EnableRename:   true,
		},
		Daemon: DaemonConfig{
			ScanFrequency:    "weekly",
			ReportOnComplete: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scenekeeper")
	}
	return filepath.Join(home, ".local", "share", "scenekeeper")
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "scenekeeper", "config.toml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// Load reads the config file, creating it with defaults if it doesn't exist
func Load() (*Config, error) {
	configFile, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if err := EnsureConfigDir(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFile(configFile)
}

// LoadFile reads a config from an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := EnsureConfigDir(); err != nil {
		return err
	}

	f, err := os.Create(configFile)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	validFrequencies := map[string]bool{
		"daily":    true,
		"weekly":   true,
		"biweekly": true,
	}
	if !validFrequencies[c.Daemon.ScanFrequency] {
		return fmt.Errorf("invalid scan frequency: %s (must be daily, weekly, or biweekly)", c.Daemon.ScanFrequency)
	}

	if c.Catalog.Path == "" {
		return fmt.Errorf("no catalog path configured")
	}

	if len(c.Libraries.Paths) == 0 {
		return fmt.Errorf("no library paths configured")
	}
	for _, path := range c.Libraries.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("library path %s: %w", path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("library path %s is not a directory", path)
		}
	}

	if c.Matcher.Tolerance <= 0 || c.Matcher.Tolerance > 100 {
		return fmt.Errorf("matcher tolerance must be in 1..100, got %d", c.Matcher.Tolerance)
	}
	if c.Matcher.AutoApplyThreshold < c.Matcher.Tolerance || c.Matcher.AutoApplyThreshold > 100 {
		return fmt.Errorf("auto apply threshold must be in %d..100, got %d",
			c.Matcher.Tolerance, c.Matcher.AutoApplyThreshold)
	}

	if len(c.Rename.KeyOrder) == 0 {
		return fmt.Errorf("rename key_order must not be empty")
	}
	for field, wrapper := range c.Rename.WrapperStyles {
		if wrapper != "" && utf8.RuneCountInString(wrapper) != 2 {
			return fmt.Errorf("wrapper style for %s must be exactly two characters, got %q", field, wrapper)
		}
	}
	for i, tr := range c.Rename.Transformations {
		if tr.Field == "" {
			return fmt.Errorf("transformation %d: missing field", i)
		}
		if tr.Pattern == "" && tr.Case == "" {
			return fmt.Errorf("transformation %d: needs a pattern or a case directive", i)
		}
		if tr.Pattern != "" {
			if _, err := regexp.Compile(tr.Pattern); err != nil {
				return fmt.Errorf("transformation %d: invalid pattern: %w", i, err)
			}
		}
		switch tr.Case {
		case "", "upper", "lower", "title":
		default:
			return fmt.Errorf("transformation %d: invalid case %q", i, tr.Case)
		}
	}

	return nil
}

// AddLibraryPath adds a library root, rejecting duplicates and non-directories.
func (c *Config) AddLibraryPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	for _, existing := range c.Libraries.Paths {
		if existing == path {
			return fmt.Errorf("path already configured: %s", path)
		}
	}
	c.Libraries.Paths = append(c.Libraries.Paths, path)
	return nil
}

// RemoveLibraryPath removes a library root.
func (c *Config) RemoveLibraryPath(path string) error {
	for i, existing := range c.Libraries.Paths {
		if existing == path {
			c.Libraries.Paths = append(c.Libraries.Paths[:i], c.Libraries.Paths[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("path not configured: %s", path)
}
