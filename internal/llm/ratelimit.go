package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig caps request and token throughput toward a provider.
type RateLimitConfig struct {
	// RequestsPerMinute caps API calls per minute (0 = unlimited).
	RequestsPerMinute int
	// TokensPerMinute caps total tokens per minute (0 = unlimited).
	TokensPerMinute int
	// BurstSize allows short bursts above the steady rate.
	BurstSize int
}

// DefaultRateLimitConfig is sized for free-tier cloud APIs. Local Ollama
// ignores these limits in practice since it never gets close to them.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 25,
		TokensPerMinute:   25000,
		BurstSize:         3,
	}
}

// RateLimitProvider wraps a provider with a token-bucket request limiter and
// a per-minute token budget fed by the response usage counts.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu               sync.Mutex
	requestTokens    int
	tokenBudget      int
	lastRefill       time.Time
	requestsInWindow int
	tokensInWindow   int
	windowStart      time.Time
}

// NewRateLimitProvider creates the wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}

	now := time.Now()
	return &RateLimitProvider{
		inner:         inner,
		config:        config,
		requestTokens: burst,
		tokenBudget:   config.TokensPerMinute,
		lastRefill:    now,
		windowStart:   now,
	}
}

func (r *RateLimitProvider) Name() string { return r.inner.Name() }

func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}

	resp, err := r.inner.Complete(ctx, prompt, opts)
	if err == nil && resp != nil {
		r.trackTokenUsage(resp.InputTokens + resp.OutputTokens)
	}
	return resp, err
}

func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	// Embedding responses carry no usage counts; only the request slot is
	// charged.
	return r.inner.Embed(ctx, texts)
}

// waitForCapacity blocks until both the request bucket and the token budget
// allow another call.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.config.RequestsPerMinute == 0 && r.config.TokensPerMinute == 0 {
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		haveRequest := r.config.RequestsPerMinute == 0 || r.requestTokens > 0
		haveTokens := r.config.TokensPerMinute == 0 || r.tokenBudget > 0

		if haveRequest && haveTokens {
			if r.config.RequestsPerMinute > 0 {
				r.requestTokens--
			}
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		wait := r.waitTime()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// refill adds request tokens for elapsed time and resets the minute window.
// Caller holds the mutex.
func (r *RateLimitProvider) refill() {
	now := time.Now()

	if r.config.RequestsPerMinute > 0 {
		added := int(now.Sub(r.lastRefill).Minutes() * float64(r.config.RequestsPerMinute))
		if added > 0 {
			r.requestTokens += added
			limit := r.config.BurstSize
			if limit <= 0 {
				limit = r.config.RequestsPerMinute / 6
				if limit < 1 {
					limit = 1
				}
			}
			if r.requestTokens > limit {
				r.requestTokens = limit
			}
			// Advance only by the time actually converted into tokens,
			// keeping the fractional remainder accruing. Advancing to now
			// unconditionally would let frequent callers discard the
			// remainder forever and starve the bucket.
			perToken := time.Minute / time.Duration(r.config.RequestsPerMinute)
			r.lastRefill = r.lastRefill.Add(time.Duration(added) * perToken)
		}
	} else {
		r.lastRefill = now
	}

	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.requestsInWindow = 0
		r.tokensInWindow = 0
		r.tokenBudget = r.config.TokensPerMinute
	}
}

func (r *RateLimitProvider) trackTokenUsage(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokensInWindow += tokens
	r.tokenBudget -= tokens
	if r.tokenBudget < 0 {
		r.tokenBudget = 0
	}
}

// waitTime estimates the sleep before re-checking capacity. Caller holds the
// mutex.
func (r *RateLimitProvider) waitTime() time.Duration {
	if r.config.RequestsPerMinute > 0 && r.requestTokens <= 0 {
		perSecond := float64(r.config.RequestsPerMinute) / 60.0
		if perSecond > 0 {
			return time.Duration(float64(time.Second) / perSecond)
		}
	}
	if r.config.TokensPerMinute > 0 && r.tokenBudget <= 0 {
		if remaining := time.Minute - time.Since(r.windowStart); remaining > 0 {
			return remaining
		}
	}
	return 100 * time.Millisecond
}

// RateLimitStats is a point-in-time snapshot of limiter state.
type RateLimitStats struct {
	RequestsInWindow  int
	TokensInWindow    int
	RemainingRequests int
	RemainingTokens   int
	WindowStart       time.Time
}

// Stats returns the current limiter state.
func (r *RateLimitProvider) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		RequestsInWindow:  r.requestsInWindow,
		TokensInWindow:    r.tokensInWindow,
		RemainingRequests: r.requestTokens,
		RemainingTokens:   r.tokenBudget,
		WindowStart:       r.windowStart,
	}
}

// WithRateLimit wraps a provider; nil providers pass through.
func WithRateLimit(p Provider, config *RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	return NewRateLimitProvider(p, config)
}
