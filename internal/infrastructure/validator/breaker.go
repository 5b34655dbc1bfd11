package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// breakerOpenTimeout is how long a tripped validator is skipped before a
// single probe run is allowed.
const breakerOpenTimeout = 30 * time.Second

// Breakers keeps one circuit breaker per validator so a validator that keeps
// hanging stops costing its full timeout on every event of a long-lived process.
// Non-zero exits are decisions, not failures, and never trip a breaker.
type Breakers struct {
	mu        sync.Mutex
	threshold uint32
	timeout   time.Duration
	byKey     map[string]*gobreaker.CircuitBreaker
	log       ports.Logger
}

// NewBreakers builds a registry. A threshold of 0 disables circuit breaking.
func NewBreakers(threshold int, log ports.Logger) *Breakers {
	if threshold < 0 {
		threshold = 0
	}
	return &Breakers{
		threshold: uint32(threshold),
		timeout:   breakerOpenTimeout,
		byKey:     make(map[string]*gobreaker.CircuitBreaker),
		log:       log,
	}
}

// SetThreshold applies a new threshold to breakers created afterwards.
func (b *Breakers) SetThreshold(threshold int) {
	if threshold < 0 {
		threshold = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if uint32(threshold) != b.threshold {
		b.threshold = uint32(threshold)
		b.byKey = make(map[string]*gobreaker.CircuitBreaker)
	}
}

// Threshold returns the consecutive-failure count that opens a breaker.
func (b *Breakers) Threshold() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.threshold)
}

// Do runs fn through the breaker for req's validator.
func (b *Breakers) Do(req domain.ValidatorRequest, fn func() domain.ValidatorResult) domain.ValidatorResult {
	cb := b.get(req)
	if cb == nil {
		return fn()
	}

	var result domain.ValidatorResult
	_, err := cb.Execute(func() (interface{}, error) {
		result = fn()
		if result.Status.InfrastructureFailure() {
			if result.Err != nil {
				return nil, result.Err
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrValidator, result.Status)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.ValidatorResult{
			Status:   domain.ValidatorCircuitOpen,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: rule %s: validator skipped after repeated failures", domain.ErrValidator, req.Rule),
		}
	}
	return result
}

func (b *Breakers) get(req domain.ValidatorRequest) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.threshold == 0 {
		return nil
	}
	key := req.Rule + "\x00" + strings.Join(req.Argv, "\x00")
	if cb, ok := b.byKey[key]; ok {
		return cb
	}
	threshold := b.threshold
	rule := req.Rule
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        rule,
		MaxRequests: 1,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if b.log != nil {
				b.log.Warn("validator circuit state changed", map[string]interface{}{
					"rule": name,
					"from": from.String(),
					"to":   to.String(),
				})
			}
		},
	})
	b.byKey[key] = cb
	return cb
}
