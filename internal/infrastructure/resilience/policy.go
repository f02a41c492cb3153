package resilience

import "time"

// Config tunes an Executor. Zero fields fall back to the values of DefaultConfig.
type Config struct {
	Retry   RetryConfig
	Breaker BreakerConfig
}

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerConfig configures the per-operation circuit breaker. Disabled turns breaking
// off entirely; retries still apply.
type BreakerConfig struct {
	Disabled         bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// DefaultConfig suits cheap calls such as broker publishes.
func DefaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerConfig{
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// EngineConfig suits remote conversion services: a conversion is expensive, so it is
// retried less eagerly and a tripped breaker stays open longer.
func EngineConfig(attempts int, openTimeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = attempts
	cfg.Retry.InitialBackoff = 500 * time.Millisecond
	cfg.Retry.MaxBackoff = 2 * time.Second
	cfg.Breaker.MinRequests = 5
	cfg.Breaker.OpenTimeout = openTimeout
	return cfg.normalize()
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.Retry.MaxAttempts <= 0 {
		out.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if out.Retry.InitialBackoff <= 0 {
		out.Retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if out.Retry.MaxBackoff <= 0 {
		out.Retry.MaxBackoff = def.Retry.MaxBackoff
	}
	out.Retry.MaxBackoff = max(out.Retry.MaxBackoff, out.Retry.InitialBackoff)
	if out.Retry.Multiplier < 1.0 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}

	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCalls == 0 {
		out.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return out
}
