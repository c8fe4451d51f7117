package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/httputil"
	"github.com/promptvault/gateway/pkg/observability"
)

const (
	// Window is the length of the per-minute sliding window
	Window = time.Minute
	// MonthlyTTL outlives the longest month, so the monthly counter never
	// expires before its month is over
	MonthlyTTL = 32 * 24 * time.Hour
)

// ErrCounterStoreUnavailable is returned in fail-closed mode when the
// counter store cannot be reached
var ErrCounterStoreUnavailable = errors.New("counter store unavailable")

// WindowResult is the outcome of one sliding window evaluation
type WindowResult struct {
	Allowed bool
	// Count is the number of admitted requests in the window, including
	// this one when allowed
	Count int64
	// Reset is when the oldest request in the window falls out of it
	Reset time.Time
}

// CounterStore is the external store holding the rate counters. All
// operations must be atomic on the store side.
type CounterStore interface {
	// Window admits one request under limit in the sliding window ending now
	Window(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (WindowResult, error)
	// IncrWithTTL atomically increments key and returns the new value.
	// In the same step it sets ttl on key whenever key has no TTL, so a
	// counter can never be left without one.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// FailureMode selects what happens when the counter store is unreachable
type FailureMode string

const (
	// FailOpen allows the request with a best-effort estimate
	FailOpen FailureMode = "open"
	// FailClosed rejects the request
	FailClosed FailureMode = "closed"
)

// ParseFailureMode parses "open" or "closed"
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case FailOpen, FailClosed:
		return FailureMode(s), nil
	}
	return "", fmt.Errorf("invalid rate limit failure mode %q (must be open or closed)", s)
}

// Config configures a Limiter
type Config struct {
	Plans        PlanTable
	FailureMode  FailureMode
	Prefix       string
	StoreTimeout time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Result is a rate limit decision
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
	// Monthly is set when the monthly ceiling rejected the request
	Monthly bool
	// Degraded is set when the decision was made without the counter store
	Degraded bool
}

// Headers returns the X-RateLimit-* headers for the decision. Reset is in
// epoch milliseconds.
func (r Result) Headers() map[string]string {
	remaining := r.Remaining
	if remaining < 0 {
		remaining = 0
	}
	return map[string]string{
		httputil.HeaderRateLimitLimit:     strconv.FormatInt(r.Limit, 10),
		httputil.HeaderRateLimitRemaining: strconv.FormatInt(remaining, 10),
		httputil.HeaderRateLimitReset:     strconv.FormatInt(r.Reset.UnixMilli(), 10),
	}
}

// Limiter enforces the per-minute and per-month ceilings of each plan
type Limiter struct {
	store   CounterStore
	config  Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewLimiter creates a new limiter. The plan table is validated once here.
func NewLimiter(store CounterStore, config Config, logger *observability.Logger, metrics *observability.Metrics) (*Limiter, error) {
	if config.Plans == nil {
		config.Plans = DefaultPlanTable()
	}
	if err := config.Plans.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan table: %w", err)
	}
	if config.FailureMode == "" {
		config.FailureMode = FailOpen
	}
	if _, err := ParseFailureMode(string(config.FailureMode)); err != nil {
		return nil, err
	}
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Limiter{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Check evaluates both ceilings for one request of apiKeyID. An error is
// returned only in fail-closed mode, when the counter store is unreachable;
// the result then carries the plan's per-minute limit with nothing
// remaining, for the response headers.
func (l *Limiter) Check(ctx context.Context, apiKeyID string, plan auth.Plan) (Result, error) {
	limits := l.config.Plans.Lookup(plan)
	now := l.config.Now()

	window, err := l.window(ctx, l.MinuteKey(plan, apiKeyID), limits.PerMinute, now)
	if err != nil {
		return l.degrade(apiKeyID, plan, limits, now, err)
	}

	if !window.Allowed {
		l.metrics.RecordRateLimitDecision(string(plan), "minute_exceeded")
		return Result{
			Allowed:   false,
			Limit:     limits.PerMinute,
			Remaining: 0,
			Reset:     window.Reset,
		}, nil
	}

	monthKey := l.MonthKey(apiKeyID, now)
	count, err := l.incr(ctx, monthKey, MonthlyTTL)
	if err != nil {
		return l.degrade(apiKeyID, plan, limits, now, err)
	}

	if count > limits.PerMonth {
		l.metrics.RecordRateLimitDecision(string(plan), "month_exceeded")
		return Result{
			Allowed:   false,
			Limit:     limits.PerMonth,
			Remaining: 0,
			Reset:     StartOfNextMonth(now),
			Monthly:   true,
		}, nil
	}

	l.metrics.RecordRateLimitDecision(string(plan), "allowed")
	return Result{
		Allowed:   true,
		Limit:     limits.PerMinute,
		Remaining: limits.PerMinute - window.Count,
		Reset:     window.Reset,
	}, nil
}

// MinuteKey returns the sliding window key of a key on a plan
func (l *Limiter) MinuteKey(plan auth.Plan, apiKeyID string) string {
	return fmt.Sprintf("%s:minute:%s:%s", l.config.Prefix, plan, apiKeyID)
}

// MonthKey returns the monthly counter key of a key for the month of now
func (l *Limiter) MonthKey(apiKeyID string, now time.Time) string {
	return fmt.Sprintf("%s:month:%s:%s", l.config.Prefix, apiKeyID, now.UTC().Format("2006-01"))
}

// StartOfNextMonth returns the first instant of the calendar month after t, in UTC
func StartOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func (l *Limiter) degrade(apiKeyID string, plan auth.Plan, limits PlanLimits, now time.Time, cause error) (Result, error) {
	logger := l.logger.WithError(cause).WithFields(map[string]interface{}{
		"api_key_id": apiKeyID,
		"plan":       string(plan),
	})

	if l.config.FailureMode == FailClosed {
		logger.Error("counter store unavailable, rejecting request")
		l.metrics.RecordRateLimitDecision(string(plan), "fail_closed")
		return Result{
			Allowed:   false,
			Limit:     limits.PerMinute,
			Remaining: 0,
			Reset:     now.Add(Window),
			Degraded:  true,
		}, fmt.Errorf("%w: %v", ErrCounterStoreUnavailable, cause)
	}

	logger.Warn("counter store unavailable, allowing request")
	l.metrics.RecordRateLimitDecision(string(plan), "fail_open")
	return Result{
		Allowed:   true,
		Limit:     limits.PerMinute,
		Remaining: limits.PerMinute - 1,
		Reset:     now.Add(Window),
		Degraded:  true,
	}, nil
}

func (l *Limiter) window(ctx context.Context, key string, limit int64, now time.Time) (WindowResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	res, err := l.store.Window(ctx, key, limit, Window, now)
	l.metrics.RecordCounterStoreCall("window", time.Since(start), err)
	return res, err
}

func (l *Limiter) incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	n, err := l.store.IncrWithTTL(ctx, key, ttl)
	l.metrics.RecordCounterStoreCall("incr", time.Since(start), err)
	return n, err
}
