package main

import (
	"globe-overlay/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// ManualRetryRateLimit clears the backoff of a throttled dataset
func (a *App) ManualRetryRateLimit(dataset string) {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.ManualRetry(dataset)
	}
}

// GetRateLimitStatus returns the throttle state of a dataset
func (a *App) GetRateLimitStatus(dataset string) *ratelimit.Event {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(dataset)
	}
	return nil
}

// IsRateLimited checks if a dataset is inside its backoff window
func (a *App) IsRateLimited(dataset string) bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(dataset)
	}
	return false
}
