package resilience

import (
	"time"
)

// Preset bundles the timeout, retry policy, and breaker configuration for a
// class of dependency. Only parameters differ between presets; the wrapping
// machinery is identical.
type Preset struct {
	Timeout time.Duration
	Retry   Policy
	Breaker BreakerConfig
}

// GRPCPreset guards internal gRPC calls.
func GRPCPreset(name string) Preset {
	return Preset{
		Timeout: 3 * time.Second,
		Retry:   DefaultPolicy(),
		Breaker: DefaultBreakerConfig(name),
	}
}

// DatabasePreset guards Postgres calls. Retries are disabled: writes are not
// idempotent by default.
func DatabasePreset(name string) Preset {
	return Preset{
		Timeout: 5 * time.Second,
		Retry:   Policy{MaxRetries: 0, Backoff: 0, MaxBackoff: 0},
		Breaker: BreakerConfig{
			Name:               name,
			FailureThreshold:   10,
			ErrorRateThreshold: 0.7,
			WindowSize:         20,
			OpenTimeout:        15 * time.Second,
			SuccessThreshold:   2,
			Interval:           60 * time.Second,
		},
	}
}

// RedisPreset guards cache and stream calls. Failing fast matters more than
// succeeding: read paths degrade to the authoritative store.
func RedisPreset(name string) Preset {
	return Preset{
		Timeout: 500 * time.Millisecond,
		Retry: Policy{
			MaxRetries: 2,
			Backoff:    20 * time.Millisecond,
			MaxBackoff: 200 * time.Millisecond,
			Jitter:     true,
		},
		Breaker: BreakerConfig{
			Name:               name,
			FailureThreshold:   5,
			ErrorRateThreshold: 0.5,
			WindowSize:         10,
			OpenTimeout:        10 * time.Second,
			SuccessThreshold:   2,
			Interval:           30 * time.Second,
		},
	}
}

// KafkaPreset guards broker publishes. Retries stay low because the producer
// itself retries and the outbox re-drives terminal failures.
func KafkaPreset(name string) Preset {
	return Preset{
		Timeout: 10 * time.Second,
		Retry: Policy{
			MaxRetries: 2,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: 1 * time.Second,
			Jitter:     true,
		},
		Breaker: BreakerConfig{
			Name:               name,
			FailureThreshold:   5,
			ErrorRateThreshold: 0.5,
			WindowSize:         10,
			OpenTimeout:        30 * time.Second,
			SuccessThreshold:   3,
			Interval:           60 * time.Second,
		},
	}
}

// HTTPPreset guards external HTTP calls.
func HTTPPreset(name string) Preset {
	return Preset{
		Timeout: 10 * time.Second,
		Retry:   DefaultPolicy(),
		Breaker: DefaultBreakerConfig(name),
	}
}
