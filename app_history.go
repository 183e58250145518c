package main

import (
	"alphaearth-desktop/internal/analysis"
	"alphaearth-desktop/internal/history"
	"alphaearth-desktop/internal/ratelimit"
)

// ===================
// Measurement History
// ===================

// HistorySummary aggregates the stored measurements
type HistorySummary struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	TotalChangedKm2 float64 `json:"totalChangedKm2"`
}

// GetMeasurementHistory returns finished measurements, newest first.
// status may be "completed", "failed" or empty for all.
func (a *App) GetMeasurementHistory(status string) []history.Record {
	if status == "" {
		return a.history.List()
	}
	return a.history.ListByStatus(history.RecordStatus(status))
}

// GetHistorySummary returns totals over the stored measurements
func (a *App) GetHistorySummary() HistorySummary {
	completed := len(a.history.ListByStatus(history.RecordStatusCompleted))
	failed := len(a.history.ListByStatus(history.RecordStatusFailed))
	return HistorySummary{
		Total:           completed + failed,
		Completed:       completed,
		Failed:          failed,
		TotalChangedKm2: a.history.TotalChangedKm2(),
	}
}

// DeleteMeasurement removes one measurement from history
func (a *App) DeleteMeasurement(id string) error {
	return a.history.Delete(id)
}

// ClearMeasurementHistory removes all measurements from history
func (a *App) ClearMeasurementHistory() error {
	return a.history.Clear()
}

// Cache Management Functions (Wails-exported)

// CacheStats represents result cache statistics for frontend
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// GetCacheStats returns current result cache statistics
func (a *App) GetCacheStats() CacheStats {
	if a.results == nil {
		return CacheStats{}
	}

	entries, hits, misses := a.results.Stats()
	stats := CacheStats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ClearCache removes all cached measurement results
func (a *App) ClearCache() {
	if a.results != nil {
		a.results.Clear()
	}
}

// Rate Limit Management Functions (Wails-exported)

// ManualRetryRateLimit lets the user retry the analysis service before the backoff ends
func (a *App) ManualRetryRateLimit() {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.ManualRetry(analysis.Provider)
	}
}

// GetRateLimitStatus returns the current rate limit state of the analysis service
func (a *App) GetRateLimitStatus() *ratelimit.RateLimitEvent {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(analysis.Provider)
	}
	return nil
}

// IsRateLimited checks if the analysis service is currently rate limited
func (a *App) IsRateLimited() bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(analysis.Provider)
	}
	return false
}
