package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// siteLimiter bundles the per-site rate gate and circuit for one site name.
// One mutable slot per site, guarded by a short critical section — the
// limiter and breaker themselves are already internally synchronized, so
// the mutex here only protects the currentDelay bookkeeping used
// to reconfigure the limiter (§5 shared-resource policy).
type siteLimiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[struct{}]
	currentDelay time.Duration
	baseDelay    time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// RateLimiter owns one siteLimiter per site, created lazily on first use.
type RateLimiter struct {
	mu    sync.Mutex
	sites map[string]*siteLimiter
}

// NewRateLimiter constructs an empty, ready-to-use rate limiter map.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{sites: make(map[string]*siteLimiter)}
}

func (rl *RateLimiter) forSite(d SiteDescriptor) *siteLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	sl, ok := rl.sites[d.Name]
	if ok {
		return sl
	}

	base := d.RateLimitBaseDelay
	if base <= 0 {
		base = Cfg.RateLimitBaseDelay
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxDelay := Cfg.RateLimitMaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	mult := Cfg.RateLimitMultiplier
	if mult <= 0 {
		mult = 2.0
	}

	sl = &siteLimiter{
		limiter:      rate.NewLimiter(delayToRate(base), 1),
		currentDelay: base,
		baseDelay:    base,
		maxDelay:     maxDelay,
		multiplier:   mult,
	}

	failThreshold := uint32(Cfg.CircuitMaxFailures)
	if failThreshold == 0 {
		failThreshold = 3
	}
	coolOff := Cfg.CircuitCoolOff
	if coolOff <= 0 {
		coolOff = 60 * time.Second
	}
	sl.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        d.Name,
		MaxRequests: 1,
		Timeout:     coolOff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failThreshold
		},
	})

	rl.sites[d.Name] = sl
	return sl
}

func delayToRate(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Gate blocks until it is this call's turn to hit the site, applying the
// minimum-spacing wait plus jitter in [0, 0.25·current_delay] (§4.4).
// Returns ErrCircuitOpen immediately, without sleeping, if the site's
// breaker is open.
func (rl *RateLimiter) Gate(ctx context.Context, d SiteDescriptor) error {
	sl := rl.forSite(d)

	if sl.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: %w", d.Name, ErrCircuitOpen)
	}

	if err := sl.limiter.Wait(ctx); err != nil {
		return err
	}

	sl.mu.Lock()
	jitter := time.Duration(rand.Int63n(int64(sl.currentDelay)/4 + 1))
	sl.mu.Unlock()
	if jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RecordSuccess decays current_delay toward base_delay and resets the
// breaker's failure count (§4.4 "on success").
func (rl *RateLimiter) RecordSuccess(d SiteDescriptor) {
	sl := rl.forSite(d)
	_, _ = sl.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.currentDelay = maxDuration(sl.baseDelay, sl.currentDelay/2)
	sl.limiter.SetLimit(delayToRate(sl.currentDelay))
}

// RecordFailure grows current_delay by the backoff multiplier and feeds
// the breaker a failure, which may trip the circuit open (§4.4 "on
// failure ... backoff-worthy").
func (rl *RateLimiter) RecordFailure(d SiteDescriptor) {
	sl := rl.forSite(d)
	_, _ = sl.breaker.Execute(func() (struct{}, error) { return struct{}{}, fmt.Errorf("backoff-worthy failure") })

	sl.mu.Lock()
	defer sl.mu.Unlock()
	grown := time.Duration(float64(sl.currentDelay) * sl.multiplier)
	if grown > sl.maxDelay {
		grown = sl.maxDelay
	}
	sl.currentDelay = grown
	sl.limiter.SetLimit(delayToRate(sl.currentDelay))
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
