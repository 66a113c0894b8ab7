package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned once the per-run request cap is reached.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// RequestLimiter gates calls to the summarization backend: an optional
// requests-per-minute token bucket and an optional per-run request cap.
type RequestLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter // nil when no quota is configured
	used     int
	denied   int
	max      int
	provider string
	log      *slog.Logger
}

// NewRequestLimiter builds a limiter. rpm <= 0 disables the quota and
// maxRequests <= 0 disables the cap.
func NewRequestLimiter(provider string, rpm, maxRequests int, log *slog.Logger) *RequestLimiter {
	rl := &RequestLimiter{
		max:      maxRequests,
		provider: provider,
		log:      log,
	}
	if rpm > 0 {
		rl.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60), 1)
	}
	return rl
}

// Acquire reserves one request from the run budget, then waits for the quota.
func (rl *RequestLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	if rl.max > 0 && rl.used >= rl.max {
		rl.denied++
		rl.mu.Unlock()
		return fmt.Errorf("%s: %w (%d/%d)", rl.provider, ErrBudgetExhausted, rl.max, rl.max)
	}
	rl.used++
	used := rl.used
	rl.mu.Unlock()

	rl.log.Debug("request budget", "provider", rl.provider, "used", used, "max", rl.max)

	if rl.limiter == nil {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		rl.log.Warn("rate limiter wait failed", "provider", rl.provider, "error", err)
		return err
	}
	return nil
}

// GetStats returns current counters.
func (rl *RequestLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"provider": rl.provider,
		"used":     rl.used,
		"limit":    rl.max,
		"denied":   rl.denied,
	}
}

// PrintStats logs current statistics.
func (rl *RequestLimiter) PrintStats() {
	stats := rl.GetStats()
	rl.log.Info("request limiter statistics",
		"provider", stats["provider"],
		"used", stats["used"],
		"limit", stats["limit"],
		"denied", stats["denied"])
}
