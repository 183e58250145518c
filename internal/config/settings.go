package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"alphaearth-desktop/internal/viz"
)

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Remote analysis service
	AnalysisServiceURL     string `json:"analysisServiceURL"`
	AnalysisAPIKey         string `json:"analysisAPIKey,omitempty"`
	AnalysisTimeoutSeconds int    `json:"analysisTimeoutSeconds"`

	// Change detection
	ChangeYearA         int     `json:"changeYear1"`
	ChangeYearB         int     `json:"changeYear2"`
	SimilarityThreshold float64 `json:"similarityThreshold"`

	// Embedding visualization defaults
	DefaultYear                int      `json:"defaultYear"`
	DefaultBands               []string `json:"defaultBands"`
	DefaultMin                 float64  `json:"defaultMin"`
	DefaultMax                 float64  `json:"defaultMax"`
	DefaultTerrainExaggeration float64  `json:"defaultTerrainExaggeration"`
	ShowLabels                 bool     `json:"showLabels"`

	// Drawing
	PointerDistance float64 `json:"pointerDistance"` // pixels

	// Result cache
	ResultCacheSize       int `json:"resultCacheSize"`
	ResultCacheTTLMinutes int `json:"resultCacheTTLMinutes"`

	// History
	MaxHistoryRecords int `json:"maxHistoryRecords"`

	// UI preferences
	Theme            string `json:"theme"` // "light", "dark", "system"
	DisableAnalytics bool   `json:"disableAnalytics"`
	InstallID        string `json:"installId,omitempty"` // anonymous analytics identity
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	params := viz.DefaultParams()
	return &UserSettings{
		AnalysisTimeoutSeconds:     90,
		ChangeYearA:                viz.DefaultYearA,
		ChangeYearB:                viz.DefaultYearB,
		SimilarityThreshold:        0.7,
		DefaultYear:                params.Year,
		DefaultBands:               params.Bands,
		DefaultMin:                 params.Min,
		DefaultMax:                 params.Max,
		DefaultTerrainExaggeration: params.TerrainExaggeration,
		ShowLabels:                 params.ShowLabels,
		PointerDistance:            30,
		ResultCacheSize:            256,
		ResultCacheTTLMinutes:      60,
		MaxHistoryRecords:          200,
		Theme:                      "system",
	}
}

// AnalysisTimeout returns the analysis timeout as a duration
func (s *UserSettings) AnalysisTimeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutSeconds) * time.Second
}

// ResultCacheTTL returns the cache TTL as a duration
func (s *UserSettings) ResultCacheTTL() time.Duration {
	return time.Duration(s.ResultCacheTTLMinutes) * time.Minute
}

// VizParams returns the embedding visualization defaults
func (s *UserSettings) VizParams() viz.Params {
	return viz.Params{
		Year:                s.DefaultYear,
		Bands:               append([]string(nil), s.DefaultBands...),
		Min:                 s.DefaultMin,
		Max:                 s.DefaultMax,
		TerrainExaggeration: s.DefaultTerrainExaggeration,
		ShowLabels:          s.ShowLabels,
	}
}

// BaseDir returns the application data directory
func BaseDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".alphaearth", "desktop")
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	baseDir := filepath.Join(BaseDir(), "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from a specific file, merged with defaults
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.AnalysisTimeoutSeconds == 0 {
		settings.AnalysisTimeoutSeconds = defaults.AnalysisTimeoutSeconds
	}
	if settings.ChangeYearA == 0 {
		settings.ChangeYearA = defaults.ChangeYearA
	}
	if settings.ChangeYearB == 0 {
		settings.ChangeYearB = defaults.ChangeYearB
	}
	if settings.SimilarityThreshold == 0 {
		settings.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if settings.DefaultYear == 0 {
		settings.DefaultYear = defaults.DefaultYear
	}
	if len(settings.DefaultBands) == 0 {
		settings.DefaultBands = defaults.DefaultBands
	}
	if settings.DefaultMin == 0 && settings.DefaultMax == 0 {
		settings.DefaultMin = defaults.DefaultMin
		settings.DefaultMax = defaults.DefaultMax
	}
	if settings.DefaultTerrainExaggeration == 0 {
		settings.DefaultTerrainExaggeration = defaults.DefaultTerrainExaggeration
	}
	if settings.PointerDistance == 0 {
		settings.PointerDistance = defaults.PointerDistance
	}
	if settings.ResultCacheSize == 0 {
		settings.ResultCacheSize = defaults.ResultCacheSize
	}
	if settings.ResultCacheTTLMinutes == 0 {
		settings.ResultCacheTTLMinutes = defaults.ResultCacheTTLMinutes
	}
	if settings.MaxHistoryRecords == 0 {
		settings.MaxHistoryRecords = defaults.MaxHistoryRecords
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo saves user settings to a specific file
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks settings before they are saved
func (s *UserSettings) Validate() error {
	if err := viz.ValidateYear(s.ChangeYearA); err != nil {
		return fmt.Errorf("change year 1: %w", err)
	}
	if err := viz.ValidateYear(s.ChangeYearB); err != nil {
		return fmt.Errorf("change year 2: %w", err)
	}
	if s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1]")
	}
	if s.AnalysisTimeoutSeconds <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}
	if s.PointerDistance < 0 {
		return fmt.Errorf("pointer distance cannot be negative")
	}
	if s.ResultCacheSize <= 0 || s.ResultCacheTTLMinutes <= 0 {
		return fmt.Errorf("result cache size and TTL must be positive")
	}
	if err := s.VizParams().Validate(); err != nil {
		return fmt.Errorf("visualization defaults: %w", err)
	}
	return nil
}

// Environment variables that override the settings file
const (
	EnvAnalysisURL     = "ALPHAEARTH_ANALYSIS_URL"
	EnvAnalysisAPIKey  = "ALPHAEARTH_ANALYSIS_API_KEY"
	EnvAnalysisTimeout = "ALPHAEARTH_ANALYSIS_TIMEOUT_SECONDS"
	EnvThreshold       = "ALPHAEARTH_SIMILARITY_THRESHOLD"
	EnvDisableAnalytic = "ALPHAEARTH_DISABLE_ANALYTICS"
)

// LoadEnvFiles reads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overrides settings from ALPHAEARTH_* environment variables
func ApplyEnv(s *UserSettings) error {
	if v := os.Getenv(EnvAnalysisURL); v != "" {
		s.AnalysisServiceURL = v
	}
	if v := os.Getenv(EnvAnalysisAPIKey); v != "" {
		s.AnalysisAPIKey = v
	}
	if v := os.Getenv(EnvAnalysisTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAnalysisTimeout, err)
		}
		s.AnalysisTimeoutSeconds = n
	}
	if v := os.Getenv(EnvThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvThreshold, err)
		}
		s.SimilarityThreshold = f
	}
	if v := os.Getenv(EnvDisableAnalytic); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDisableAnalytic, err)
		}
		s.DisableAnalytics = b
	}
	return nil
}
