package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// RetryStrategy defines the backoff intervals for rate limit retries
type RetryStrategy struct {
	Intervals []time.Duration // e.g., [5min, 10min, 15min, 20min, 30min]
}

// DefaultRetryStrategy returns the default backoff strategy
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			5 * time.Minute,
			10 * time.Minute,
			15 * time.Minute,
			20 * time.Minute,
			30 * time.Minute,
		},
	}
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp" ts_type:"string"`
	Provider     string    `json:"provider"`
	StatusCode   int       `json:"statusCode"`   // HTTP status code (403, 429, etc.)
	RetryAttempt int       `json:"retryAttempt"` // 0 = first occurrence
	NextRetryAt  time.Time `json:"nextRetryAt" ts_type:"string"`
	Message      string    `json:"message"` // User-friendly message
}

// Handler tracks which providers are rate limited and until when.
// A provider stays blocked until its NextRetryAt passes, a successful
// response is seen, or the user retries manually.
type Handler struct {
	mu          sync.RWMutex
	rateLimited map[string]*RateLimitEvent
	strategy    *RetryStrategy
	onRateLimit func(event RateLimitEvent)
	onRecovered func(provider string)
	now         func() time.Time
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}

	return &Handler{
		rateLimited: make(map[string]*RateLimitEvent),
		strategy:    strategy,
		now:         time.Now,
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRecovered sets the callback for recovery from rate limit
func (h *Handler) SetOnRecovered(callback func(provider string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// IsRateLimited checks if a provider is currently inside its backoff window
func (h *Handler) IsRateLimited(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, limited := h.rateLimited[provider]
	return limited && h.now().Before(event.NextRetryAt)
}

// IsRateLimitStatus reports whether an HTTP status code signals throttling
func IsRateLimitStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusForbidden || // Google APIs use 403 for quota errors
		statusCode == 509 // Bandwidth Limit Exceeded
}

// CheckStatus records the outcome of a request. It returns true when the
// status code indicates the provider is rate limiting us.
func (h *Handler) CheckStatus(provider string, statusCode int) bool {
	if !IsRateLimitStatus(statusCode) {
		h.checkRecovery(provider)
		return false
	}

	h.recordRateLimit(provider, statusCode)
	return true
}

// recordRateLimit records a rate limit event and computes the next retry time
func (h *Handler) recordRateLimit(provider string, statusCode int) {
	h.mu.Lock()

	existing, exists := h.rateLimited[provider]

	retryAttempt := 0
	if exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	var interval time.Duration
	if retryAttempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[retryAttempt]
	} else {
		// Use last interval for all subsequent retries
		interval = h.strategy.Intervals[len(h.strategy.Intervals)-1]
	}

	now := h.now()
	event := RateLimitEvent{
		Timestamp:    now,
		Provider:     provider,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  now.Add(interval),
		Message:      buildMessage(provider, statusCode, retryAttempt, interval),
	}
	h.rateLimited[provider] = &event
	callback := h.onRateLimit
	h.mu.Unlock()

	log.Printf("[RateLimit] %s rate limited (attempt %d). Next retry at %s",
		provider, retryAttempt, event.NextRetryAt.Format(time.RFC3339))

	if callback != nil {
		go callback(event)
	}
}

// checkRecovery clears a previous rate limit after a successful response
func (h *Handler) checkRecovery(provider string) {
	h.mu.Lock()
	_, exists := h.rateLimited[provider]
	if exists {
		delete(h.rateLimited, provider)
	}
	callback := h.onRecovered
	h.mu.Unlock()

	if !exists {
		return
	}
	log.Printf("[RateLimit] %s rate limit cleared", provider)
	if callback != nil {
		go callback(provider)
	}
}

// ManualRetry lifts the backoff so the next request goes through
func (h *Handler) ManualRetry(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; !exists {
		return
	}
	log.Printf("[RateLimit] Manual retry requested for %s", provider)

	// Keep the attempt counter so a repeat 429 escalates the backoff
	h.rateLimited[provider].NextRetryAt = h.now()
}

// GetCurrentState returns the current rate limit state for a provider
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

// buildMessage creates a user-friendly message
func buildMessage(provider string, statusCode int, retryAttempt int, wait time.Duration) string {
	minutes := int(wait.Minutes())

	if retryAttempt == 0 {
		return fmt.Sprintf(
			"%s rate limit detected (HTTP %d). Measurements are paused for %d minutes.",
			provider, statusCode, minutes)
	}
	return fmt.Sprintf(
		"%s still rate limited (retry attempt %d). Next attempt allowed in %d minutes.",
		provider, retryAttempt+1, minutes)
}
