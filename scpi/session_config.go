package scpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/arloliu/go-scpi/internal/pool"
	"github.com/arloliu/go-scpi/logger"
)

// DefaultSettleDelay is the quiescence period the sensor needs after *RST
// and before each INIT.
const DefaultSettleDelay = 500 * time.Millisecond

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

type sessionConfig struct {
	settleDelay time.Duration
	sleep       SleepFunc

	// frequencyMHz is the fixed carrier frequency; nil keeps auto tracking.
	frequencyMHz *float64

	policy StatusPolicy
	// drainLimit caps the number of drained errors per status check; zero is unlimited.
	drainLimit int

	logger logger.Logger
}

func defaultSessionConfig() *sessionConfig {
	return &sessionConfig{
		settleDelay: DefaultSettleDelay,
		sleep:       sleepContext,
		policy:      PolicyExclusive,
		logger:      logger.GetLogger(),
	}
}

// SessionOption is a functional option for configuring a Session.
type SessionOption interface {
	apply(*sessionConfig) error
}

type sessionOptFunc func(*sessionConfig) error

func (f sessionOptFunc) apply(cfg *sessionConfig) error { return f(cfg) }

// WithSettleDelay overrides the settle delay used after *RST and before each INIT.
func WithSettleDelay(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if d < 0 {
			return errors.New("scpi: settle delay must not be negative")
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithSleeper replaces the function used to wait out settle delays.
func WithSleeper(fn SleepFunc) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if fn == nil {
			return errors.New("scpi: sleeper must not be nil")
		}
		cfg.sleep = fn

		return nil
	})
}

// WithFrequencyMHz fixes the carrier frequency sent with SENS:FREQ during
// initialization. Without it the sensor stays in frequency auto tracking.
func WithFrequencyMHz(mhz float64) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if mhz <= 0 || math.IsInf(mhz, 0) || math.IsNaN(mhz) {
			return fmt.Errorf("scpi: invalid frequency %v MHz", mhz)
		}
		cfg.frequencyMHz = &mhz

		return nil
	})
}

// WithStatusPolicy selects how the error and questionable branches combine.
func WithStatusPolicy(p StatusPolicy) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if p != PolicyExclusive && p != PolicyIndependent {
			return fmt.Errorf("scpi: unknown status policy %d", int(p))
		}
		cfg.policy = p

		return nil
	})
}

// WithErrorDrainLimit aborts the status check with a protocol violation once
// more than n errors were drained in one pass. Zero, the default, is unlimited.
func WithErrorDrainLimit(n int) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if n < 0 {
			return errors.New("scpi: error drain limit must not be negative")
		}
		cfg.drainLimit = n

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if l == nil {
			return errors.New("scpi: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
