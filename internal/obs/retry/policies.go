package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PublishPolicy is used by the outbox when handing events to Kafka.
func PublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}

// ProbePolicy retries a stream probe; callers wrap final outcomes with Permanent.
func ProbePolicy(attempts int, base time.Duration) Policy {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	return Policy{
		Name:     "probe",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: 4 * base, Jitter: 0.2},
	}
}
