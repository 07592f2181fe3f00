package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/capability.report/internal/spc"
)

// DefaultConfigPath is the path to the canonical defaults file shipped with
// the server.
const DefaultConfigPath = "config/capability.defaults.json"

// Config is the root configuration for the capability server and CLI.
// Every field is optional; the Get* accessors supply defaults for fields
// the file leaves out, so partial configs are safe.
type Config struct {
	// Server
	Listen          *string `json:"listen,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
	RecentRunsLimit *int    `json:"recent_runs_limit,omitempty"`

	// Analysis input
	GroupCountChoices   []int `json:"group_count_choices,omitempty"`
	DefaultSubgroupSize *int  `json:"default_subgroup_size,omitempty"`

	// Chart output
	PlotDir          *string  `json:"plot_dir,omitempty"`
	PlotWidthInches  *float64 `json:"plot_width_inches,omitempty"`
	PlotHeightInches *float64 `json:"plot_height_inches,omitempty"`
	ChartTheme       *string  `json:"chart_theme,omitempty"`
}

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from cmd/capability/
		"../../" + DefaultConfigPath, // from internal/<pkg>/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}

	if c.DBPath != nil && *c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}

	if c.RecentRunsLimit != nil && *c.RecentRunsLimit < 1 {
		return fmt.Errorf("recent_runs_limit must be positive, got %d", *c.RecentRunsLimit)
	}

	for _, n := range c.GroupCountChoices {
		if n < 1 {
			return fmt.Errorf("group_count_choices must be positive, got %d", n)
		}
	}

	if c.DefaultSubgroupSize != nil {
		if _, ok := spc.D2(*c.DefaultSubgroupSize); !ok {
			return fmt.Errorf("default_subgroup_size must be between %d and %d, got %d",
				spc.MinSubgroupSize, spc.MaxSubgroupSize, *c.DefaultSubgroupSize)
		}
	}

	if c.PlotWidthInches != nil && *c.PlotWidthInches <= 0 {
		return fmt.Errorf("plot_width_inches must be positive, got %f", *c.PlotWidthInches)
	}
	if c.PlotHeightInches != nil && *c.PlotHeightInches <= 0 {
		return fmt.Errorf("plot_height_inches must be positive, got %f", *c.PlotHeightInches)
	}

	return nil
}

// GetListen returns the HTTP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

// GetDBPath returns the SQLite database path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "capability.db"
	}
	return *c.DBPath
}

// GetRecentRunsLimit returns how many runs the list endpoint returns.
func (c *Config) GetRecentRunsLimit() int {
	if c.RecentRunsLimit == nil {
		return 50
	}
	return *c.RecentRunsLimit
}

// GetGroupCountChoices returns the group counts users may pick from.
func (c *Config) GetGroupCountChoices() []int {
	if len(c.GroupCountChoices) == 0 {
		return []int{5, 6}
	}
	return append([]int(nil), c.GroupCountChoices...)
}

// AllowsGroupCount reports whether n is one of the configured choices.
func (c *Config) AllowsGroupCount(n int) bool {
	for _, choice := range c.GetGroupCountChoices() {
		if choice == n {
			return true
		}
	}
	return false
}

// GetDefaultSubgroupSize returns the subgroup size used when a run does not
// declare one and its groups differ in size.
func (c *Config) GetDefaultSubgroupSize() int {
	if c.DefaultSubgroupSize == nil {
		return 5
	}
	return *c.DefaultSubgroupSize
}

// GetPlotDir returns the directory PNG charts are written under.
func (c *Config) GetPlotDir() string {
	if c.PlotDir == nil || *c.PlotDir == "" {
		return "plots"
	}
	return *c.PlotDir
}

// GetPlotWidthInches returns the PNG chart width.
func (c *Config) GetPlotWidthInches() float64 {
	if c.PlotWidthInches == nil {
		return 8
	}
	return *c.PlotWidthInches
}

// GetPlotHeightInches returns the PNG chart height.
func (c *Config) GetPlotHeightInches() float64 {
	if c.PlotHeightInches == nil {
		return 4
	}
	return *c.PlotHeightInches
}

// GetChartTheme returns the go-echarts theme name.
func (c *Config) GetChartTheme() string {
	if c.ChartTheme == nil || *c.ChartTheme == "" {
		return "white"
	}
	return *c.ChartTheme
}
