// Package ratelimit pauses requests to tile servers that throttle us.
package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"globe-overlay/internal/logger"
)

// RetryStrategy defines the backoff windows after consecutive throttled responses
type RetryStrategy struct {
	Intervals []time.Duration
}

// DefaultRetryStrategy returns the default escalating backoff
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

// Event describes a throttled dataset
type Event struct {
	Timestamp    time.Time `json:"timestamp" ts_type:"string"`
	Dataset      string    `json:"dataset"`
	StatusCode   int       `json:"statusCode"`
	RetryAttempt int       `json:"retryAttempt"`
	NextRetryAt  time.Time `json:"nextRetryAt" ts_type:"string"`
	Message      string    `json:"message"`
}

// IsThrottleStatus reports whether an HTTP status means the server is throttling
func IsThrottleStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusForbidden ||
		code == 509 // Bandwidth Limit Exceeded
}

// Handler tracks throttled datasets and their backoff windows
type Handler struct {
	mu          sync.RWMutex
	limited     map[string]*Event
	strategy    *RetryStrategy
	onRateLimit func(event Event)
	onRecovered func(dataset string)
	now         func() time.Time
	log         *slog.Logger
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}
	return &Handler{
		limited:  make(map[string]*Event),
		strategy: strategy,
		now:      time.Now,
		log:      logger.With("ratelimit"),
	}
}

// SetOnRateLimit sets the callback for throttle events
func (h *Handler) SetOnRateLimit(callback func(event Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRecovered sets the callback for a dataset leaving backoff
func (h *Handler) SetOnRecovered(callback func(dataset string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// IsRateLimited reports whether requests for dataset should be held back.
// Once the backoff window passes one request is let through as a probe.
func (h *Handler) IsRateLimited(dataset string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, limited := h.limited[dataset]
	return limited && h.now().Before(event.NextRetryAt)
}

// CheckStatus records the outcome of a response and reports whether it was throttled
func (h *Handler) CheckStatus(dataset string, statusCode int) bool {
	if !IsThrottleStatus(statusCode) {
		h.checkRecovery(dataset)
		return false
	}
	h.recordRateLimit(dataset, statusCode)
	return true
}

func (h *Handler) recordRateLimit(dataset string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	retryAttempt := 0
	if existing, exists := h.limited[dataset]; exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	interval := h.strategy.Intervals[min(retryAttempt, len(h.strategy.Intervals)-1)]
	now := h.now()
	event := Event{
		Timestamp:    now,
		Dataset:      dataset,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  now.Add(interval),
	}
	event.Message = buildMessage(event, interval)
	h.limited[dataset] = &event

	h.log.Warn("Dataset rate limited", "dataset", dataset, "status", statusCode,
		"attempt", retryAttempt, "nextRetryAt", event.NextRetryAt.Format(time.RFC3339))

	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}
}

func (h *Handler) checkRecovery(dataset string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.limited[dataset]; exists {
		delete(h.limited, dataset)
		h.log.Info("Dataset recovered from rate limit", "dataset", dataset)

		if h.onRecovered != nil {
			go h.onRecovered(dataset)
		}
	}
}

// ManualRetry clears the backoff for dataset so the next cycle requests it again
func (h *Handler) ManualRetry(dataset string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.limited[dataset]; exists {
		h.log.Info("Manual retry requested", "dataset", dataset)
		delete(h.limited, dataset)
	}
}

// GetCurrentState returns a copy of the throttle state for dataset, or nil
func (h *Handler) GetCurrentState(dataset string) *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.limited[dataset]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func buildMessage(event Event, wait time.Duration) string {
	if event.RetryAttempt == 0 {
		return fmt.Sprintf("%s is throttling tile requests (HTTP %d). Labels pause for %d minutes.",
			event.Dataset, event.StatusCode, int(wait.Minutes()))
	}
	return fmt.Sprintf("%s still throttled (attempt %d). Next try in %d minutes.",
		event.Dataset, event.RetryAttempt+1, int(wait.Minutes()))
}
