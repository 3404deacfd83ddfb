package request

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// ProviderBackoff puts a provider on cooldown after failed requests. The
// cooldown grows exponentially with consecutive failures and shrinks one
// step per success.
type ProviderBackoff struct {
	mu        sync.RWMutex
	providers map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

type backoffState struct {
	failureCount int
	nextAllowed  time.Time
}

// NewProviderBackoff creates a new backoff manager.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		providers: make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		now:       time.Now,
	}
}

// Wait blocks until the provider's cooldown has passed.
func (b *ProviderBackoff) Wait(provider string) {
	if d := b.Remaining(provider); d > 0 {
		time.Sleep(d)
	}
}

// Remaining returns how long the provider is still on cooldown.
func (b *ProviderBackoff) Remaining(provider string) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, ok := b.providers[provider]
	if !ok {
		return 0
	}
	if d := state.nextAllowed.Sub(b.now()); d > 0 {
		return d
	}
	return 0
}

// RecordFailure extends the cooldown of a provider.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.providers[provider]
	if !ok {
		state = &backoffState{}
		b.providers[provider] = state
	}
	state.failureCount++
	state.nextAllowed = b.now().Add(b.delay(state.failureCount))
}

// RecordSuccess steps the failure count down; at zero the cooldown clears.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.providers[provider]
	if !ok {
		return
	}
	if state.failureCount > 0 {
		state.failureCount--
	}
	if state.failureCount == 0 {
		delete(b.providers, provider)
	}
}

// Failures returns the consecutive failure count of a provider.
func (b *ProviderBackoff) Failures(provider string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if state, ok := b.providers[provider]; ok {
		return state.failureCount
	}
	return 0
}

// delay is baseDelay * 2^(failures-1), capped at maxDelay, plus up to 10% jitter.
func (b *ProviderBackoff) delay(failures int) time.Duration {
	d := time.Duration(float64(b.baseDelay) * math.Pow(2, float64(failures-1)))
	if d > b.maxDelay {
		d = b.maxDelay
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}
