// Package supervisor implements the fault-tolerance supervisor (spec §4.6):
// a circuit breaker per (target_kind, target_name) pair plus retry with
// exponential backoff and jitter for transient upstream failures. Grounded
// on axonhub's per-channel/per-key mutex-protected error counters
// (internal/server/biz/channel_auto_disable.go), generalized from
// "disable a channel/key after N consecutive errors" to a full
// closed/open/half_open state machine, using cespare/xxhash/v2 to derive
// the opaque target id reported in status snapshots.
package supervisor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/orbitgw/orbit/internal/orbiterr"
)

// State is a circuit breaker's current posture (spec §4.6).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Policy configures one circuit breaker and its retry behavior.
type Policy struct {
	// FOpen is the consecutive-failure threshold that trips the breaker.
	FOpen int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// MaxRetries is the maximum additional attempts per call (0 = no retry).
	MaxRetries int
	// BaseBackoff and MaxBackoff bound the exponential backoff schedule.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FOpen:       5,
		Cooldown:    30 * time.Second,
		MaxRetries:  2,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// Status is a point-in-time snapshot of one target's breaker, surfaced by
// the health endpoint (spec §4.6).
type Status struct {
	Kind             string
	Name             string
	TargetID         string
	State            State
	SinceTransition  time.Duration
	LastErrorClass   string
	RollingSuccesses int
	RollingFailures  int
}

type breaker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	transitionedAt      time.Time
	halfOpenProbing     bool
	lastErrorClass      string
	successWindow       []bool // true = success, ring buffer of recent outcomes
}

const rollingWindowSize = 50

// Supervisor owns one breaker per (target_kind, target_name), kept in a
// single map guarded by one RWMutex; each breaker's state is guarded by
// that breaker's own mutex.
type Supervisor struct {
	policy   Policy
	mu       sync.RWMutex
	breakers map[string]*breaker
}

func New(policy Policy) *Supervisor {
	return &Supervisor{policy: policy, breakers: map[string]*breaker{}}
}

func targetKey(kind, name string) string {
	return kind + ":" + name
}

// shardHash produces the stable target id the health endpoint exposes
// alongside (kind, name) at /admin/system-status, so dashboards and alert
// rules can key on an opaque, fixed-width id instead of a free-form string
// that changes shape across target kinds.
func shardHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (s *Supervisor) getBreaker(kind, name string) *breaker {
	key := targetKey(kind, name)

	s.mu.RLock()
	b, ok := s.breakers[key]
	s.mu.RUnlock()

	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[key]; ok {
		return b
	}

	b = &breaker{state: StateClosed, transitionedAt: time.Now()}
	s.breakers[key] = b

	return b
}

// Call runs fn through the breaker for (kind, name), applying retry with
// exponential backoff + jitter for transient failures (spec §4.6). Retries
// never apply to non-transient errors; the failure counter is only updated
// after the final attempt.
func (s *Supervisor) Call(ctx context.Context, kind, name string, fn func(ctx context.Context) error) error {
	b := s.getBreaker(kind, name)

	if !b.admit(s.policy.Cooldown) {
		return orbiterr.New(orbiterr.KindUpstreamTransient, "upstream_unavailable: "+targetKey(kind, name))
	}

	var lastErr error

	attempts := s.policy.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			b.recordSuccess()
			return nil
		}

		if !orbiterr.Retryable(lastErr) {
			break
		}

		if attempt == attempts-1 {
			break
		}

		if err := sleepBackoff(ctx, s.policy, attempt); err != nil {
			lastErr = err
			break
		}
	}

	b.recordFailure(s.policy.FOpen, classify(lastErr))

	return lastErr
}

func classify(err error) string {
	if oe, ok := orbiterr.As(err); ok {
		return string(oe.Kind)
	}

	return "unknown"
}

func sleepBackoff(ctx context.Context, policy Policy, attempt int) error {
	backoff := policy.BaseBackoff << attempt
	if backoff > policy.MaxBackoff || backoff <= 0 {
		backoff = policy.MaxBackoff
	}

	jitter := time.Duration(float64(backoff) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // jitter, not security sensitive
	wait := backoff + jitter

	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admit reports whether a call may proceed: always in closed/half_open
// (exactly one probe), never in open until cooldown elapses.
func (b *breaker) admit(cooldown time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.transitionedAt) < cooldown {
			return false
		}

		b.state = StateHalfOpen
		b.transitionedAt = time.Now()
		b.halfOpenProbing = true

		return true
	case StateHalfOpen:
		if b.halfOpenProbing {
			return false
		}

		b.halfOpenProbing = true

		return true
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.halfOpenProbing = false

	if b.state != StateClosed {
		b.state = StateClosed
		b.transitionedAt = time.Now()
	}

	b.pushOutcome(true)
}

func (b *breaker) recordFailure(fOpen int, errClass string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastErrorClass = errClass
	b.halfOpenProbing = false
	b.pushOutcome(false)

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.transitionedAt = time.Now()
		b.consecutiveFailures = fOpen

		return
	}

	b.consecutiveFailures++

	if b.consecutiveFailures >= fOpen {
		b.state = StateOpen
		b.transitionedAt = time.Now()
	}
}

func (b *breaker) pushOutcome(success bool) {
	b.successWindow = append(b.successWindow, success)
	if len(b.successWindow) > rollingWindowSize {
		b.successWindow = b.successWindow[len(b.successWindow)-rollingWindowSize:]
	}
}

func (b *breaker) snapshot(kind, name string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	var successes, failures int

	for _, ok := range b.successWindow {
		if ok {
			successes++
		} else {
			failures++
		}
	}

	return Status{
		Kind:             kind,
		Name:             name,
		TargetID:         fmt.Sprintf("%016x", shardHash(targetKey(kind, name))),
		State:            b.state,
		SinceTransition:  time.Since(b.transitionedAt),
		LastErrorClass:   b.lastErrorClass,
		RollingSuccesses: successes,
		RollingFailures:  failures,
	}
}

// Snapshot returns the current status of every known target, for the
// admin health endpoint (spec §4.6).
func (s *Supervisor) Snapshot() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.breakers))

	for key, b := range s.breakers {
		kind, name := splitTargetKey(key)
		out = append(out, b.snapshot(kind, name))
	}

	return out
}

func splitTargetKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}

	return key, ""
}
