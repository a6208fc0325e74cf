package utils

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitBackoff handles rate limit detection and backoff calculations for
// collaborator adapters. The orchestrator itself never retries.
type RateLimitBackoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	BufferTime time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRateLimitBackoff creates a new rate limit backoff handler with sensible defaults
func NewRateLimitBackoff() *RateLimitBackoff {
	return &RateLimitBackoff{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		BufferTime: 2 * time.Second,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func containsRateLimitPhrases(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "requests per minute") ||
		strings.Contains(s, "rate exceeded") ||
		strings.Contains(s, "quota exceeded") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "insufficient quota") ||
		(strings.Contains(s, "quota") && strings.Contains(s, "exceeded")) ||
		strings.Contains(s, "current quota")
}

// IsRateLimitError checks if an error or HTTP response indicates a rate limit
func (rlb *RateLimitBackoff) IsRateLimitError(err error, resp *http.Response) bool {
	// HTTP 429 is generally a reliable indicator
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "429") {
		return true
	}
	return containsRateLimitPhrases(errStr)
}

// CalculateBackoffDelay calculates how long to wait before retrying
func (rlb *RateLimitBackoff) CalculateBackoffDelay(resp *http.Response, attempt int) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				return rlb.capDelay(time.Duration(seconds)*time.Second + rlb.BufferTime)
			}
		}
	}
	return rlb.capDelay(rlb.BaseDelay * time.Duration(math.Pow(2, float64(attempt))))
}

// capDelay ensures delay doesn't exceed maximum
func (rlb *RateLimitBackoff) capDelay(delay time.Duration) time.Duration {
	if delay > rlb.MaxDelay {
		return rlb.MaxDelay
	}
	if delay < 0 {
		return rlb.BaseDelay
	}
	return delay
}

// ShouldRetry determines if we should retry based on attempt count
func (rlb *RateLimitBackoff) ShouldRetry(attempt int) bool {
	return attempt < rlb.MaxRetries
}

// Do runs fn, retrying only rate-limit failures until MaxRetries is reached or
// ctx is done. Other errors are returned immediately.
func (rlb *RateLimitBackoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := rlb.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !rlb.IsRateLimitError(err, nil) || !rlb.ShouldRetry(attempt) {
			return err
		}
		if serr := sleep(ctx, rlb.CalculateBackoffDelay(nil, attempt)); serr != nil {
			return err
		}
	}
}
