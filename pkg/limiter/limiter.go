// Package limiter enforces rate and budget limits on LLM calls with a token
// bucket algorithm.
package limiter

import (
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRateLimit is returned when the token-per-minute bucket is empty.
	ErrRateLimit = fmt.Errorf("rate limit exceeded")
	// ErrBudgetExceeded is returned when the daily request budget is spent.
	ErrBudgetExceeded = fmt.Errorf("daily request budget exceeded")
)

// Limiter caps LLM usage with a token-per-minute bucket and a daily request
// budget. A zero limit disables the corresponding check.
type Limiter struct {
	mu                 sync.Mutex
	maxTokensPerMinute int
	maxRequestsPerDay  int
	currentTokens      int
	requestsToday      int
	lastRefill         time.Time
	resetTimer         *time.Timer
}

// New creates a limiter with the given per-minute token and per-day request caps.
func New(maxTokensPerMinute, maxRequestsPerDay int) *Limiter {
	l := &Limiter{
		maxTokensPerMinute: maxTokensPerMinute,
		maxRequestsPerDay:  maxRequestsPerDay,
		currentTokens:      maxTokensPerMinute,
		lastRefill:         time.Now(),
	}
	l.scheduleDailyReset()
	return l
}

// Reserve claims capacity for one request of the given token size.
// Returns ErrBudgetExceeded or ErrRateLimit without consuming anything when a
// limit is hit.
func (l *Limiter) Reserve(tokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxRequestsPerDay > 0 && l.requestsToday >= l.maxRequestsPerDay {
		return ErrBudgetExceeded
	}

	if l.maxTokensPerMinute > 0 {
		l.refillTokens()
		if l.currentTokens < tokens {
			return ErrRateLimit
		}
		l.currentTokens -= tokens
	}

	l.requestsToday++
	return nil
}

// GetStatus returns the remaining minute tokens and requests used today.
func (l *Limiter) GetStatus() (tokens, requests int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	return l.currentTokens, l.requestsToday
}

// ResetDaily clears the daily request count and refills the token bucket.
func (l *Limiter) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requestsToday = 0
	l.currentTokens = l.maxTokensPerMinute
	l.lastRefill = time.Now()
}

// Close stops the limiter and releases resources.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resetTimer != nil {
		l.resetTimer.Stop()
	}
}

func (l *Limiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill)

	if elapsed >= time.Minute {
		// Refill tokens for each minute that has passed.
		minutes := int(elapsed / time.Minute)
		l.currentTokens += minutes * l.maxTokensPerMinute
		if l.currentTokens > l.maxTokensPerMinute {
			l.currentTokens = l.maxTokensPerMinute
		}

		// Advance refill time to the last complete minute.
		l.lastRefill = l.lastRefill.Add(time.Duration(minutes) * time.Minute)
	}
}

func (l *Limiter) scheduleDailyReset() {
	now := time.Now()

	// Next midnight in local time.
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	l.resetTimer = time.AfterFunc(time.Until(nextMidnight), func() {
		l.ResetDaily()
		l.mu.Lock()
		l.resetTimer = time.AfterFunc(24*time.Hour, func() {
			l.scheduleDailyReset()
		})
		l.mu.Unlock()
	})
}
