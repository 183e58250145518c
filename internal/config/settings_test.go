package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 0.7, s.SimilarityThreshold)
	assert.Equal(t, 2017, s.ChangeYearA)
	assert.Equal(t, 2024, s.ChangeYearB)
	assert.Equal(t, 90*time.Second, s.AnalysisTimeout())
	assert.Equal(t, time.Hour, s.ResultCacheTTL())
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"analysisServiceURL":"https://ee.example.com","changeYear1":2019}`), 0644))

	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ee.example.com", s.AnalysisServiceURL)
	assert.Equal(t, 2019, s.ChangeYearA)
	assert.Equal(t, 2024, s.ChangeYearB)
	assert.Equal(t, 0.7, s.SimilarityThreshold)
	assert.Equal(t, []string{"A01", "A16", "A09"}, s.DefaultBands)
	assert.Equal(t, 30.0, s.PointerDistance)
}

func TestLoadSettingsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	_, err := LoadSettingsFrom(path)
	assert.Error(t, err)
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := DefaultSettings()
	s.AnalysisServiceURL = "http://localhost:8080"
	s.ChangeYearA = 2020

	require.NoError(t, SaveSettingsTo(path, s))
	loaded, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestValidateRejectsBadValues(t *testing.T) {
	s := DefaultSettings()
	s.ChangeYearA = 2012
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.SimilarityThreshold = 1.2
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.DefaultBands = []string{"A01"}
	assert.Error(t, s.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAnalysisURL, "https://analysis.internal")
	t.Setenv(EnvThreshold, "0.55")
	t.Setenv(EnvAnalysisTimeout, "30")
	t.Setenv(EnvDisableAnalytic, "true")

	s := DefaultSettings()
	require.NoError(t, ApplyEnv(s))
	assert.Equal(t, "https://analysis.internal", s.AnalysisServiceURL)
	assert.Equal(t, 0.55, s.SimilarityThreshold)
	assert.Equal(t, 30, s.AnalysisTimeoutSeconds)
	assert.True(t, s.DisableAnalytics)

	t.Setenv(EnvThreshold, "high")
	assert.Error(t, ApplyEnv(s))
}

func TestLoadEnvFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALPHAEARTH_ANALYSIS_API_KEY=from-dotenv\n"), 0644))
	t.Setenv(EnvAnalysisAPIKey, "")
	os.Unsetenv(EnvAnalysisAPIKey)

	LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), path)

	s := DefaultSettings()
	require.NoError(t, ApplyEnv(s))
	assert.Equal(t, "from-dotenv", s.AnalysisAPIKey)
}
