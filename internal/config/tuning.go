package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for one seismic-qa run: the period
// bands and model files the metrics compare against, the cross-power
// segmentation tuning, and where results are persisted (spec §9).
type TuningConfig struct {
	// Period band (seconds) averaged over by Deviation and Coherence.
	PeriodLow  *float64 `json:"period_low,omitempty"`
	PeriodHigh *float64 `json:"period_high,omitempty"`

	// Reference noise model files, one Deviation instance per path.
	NLNMModelPath *string `json:"nlnm_model_path,omitempty"`
	NHNMModelPath *string `json:"nhnm_model_path,omitempty"`

	// Cross-power segmentation tuning (spec §4.3).
	TaperFraction   *float64 `json:"taper_fraction,omitempty"`
	SmoothHalfWidth *int     `json:"smooth_half_width,omitempty"`

	// ForceRecompute bypasses the change-detection skip and re-evaluates
	// every channel regardless of digest state.
	ForceRecompute *bool `json:"force_recompute,omitempty"`

	// DatabasePath is the sqlite file the reference store adapter opens.
	DatabasePath *string `json:"database_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
		"../../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PeriodLow != nil && c.PeriodHigh != nil && *c.PeriodLow > *c.PeriodHigh {
		return fmt.Errorf("period_low (%g) must not exceed period_high (%g)", *c.PeriodLow, *c.PeriodHigh)
	}
	if c.TaperFraction != nil {
		if *c.TaperFraction < 0 || *c.TaperFraction > 0.5 {
			return fmt.Errorf("taper_fraction must be between 0 and 0.5, got %g", *c.TaperFraction)
		}
	}
	if c.SmoothHalfWidth != nil && *c.SmoothHalfWidth < 0 {
		return fmt.Errorf("smooth_half_width must be non-negative, got %d", *c.SmoothHalfWidth)
	}
	return nil
}

// GetPeriodLow returns the period_low value or the default.
func (c *TuningConfig) GetPeriodLow() float64 {
	if c.PeriodLow == nil {
		return 20.0
	}
	return *c.PeriodLow
}

// GetPeriodHigh returns the period_high value or the default.
func (c *TuningConfig) GetPeriodHigh() float64 {
	if c.PeriodHigh == nil {
		return 50.0
	}
	return *c.PeriodHigh
}

// GetNLNMModelPath returns the nlnm_model_path value or the default.
func (c *TuningConfig) GetNLNMModelPath() string {
	if c.NLNMModelPath == nil {
		return "config/models/nlnm.txt"
	}
	return *c.NLNMModelPath
}

// GetNHNMModelPath returns the nhnm_model_path value or the default.
func (c *TuningConfig) GetNHNMModelPath() string {
	if c.NHNMModelPath == nil {
		return "config/models/nhnm.txt"
	}
	return *c.NHNMModelPath
}

// GetTaperFraction returns the taper_fraction value or the default.
func (c *TuningConfig) GetTaperFraction() float64 {
	if c.TaperFraction == nil {
		return 0.10
	}
	return *c.TaperFraction
}

// GetSmoothHalfWidth returns the smooth_half_width value or the default.
func (c *TuningConfig) GetSmoothHalfWidth() int {
	if c.SmoothHalfWidth == nil {
		return 5
	}
	return *c.SmoothHalfWidth
}

// GetForceRecompute returns the force_recompute value or the default.
func (c *TuningConfig) GetForceRecompute() bool {
	if c.ForceRecompute == nil {
		return false
	}
	return *c.ForceRecompute
}

// GetDatabasePath returns the database_path value or the default.
func (c *TuningConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "seismic-qa.db"
	}
	return *c.DatabasePath
}
