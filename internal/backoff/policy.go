package backoff

import (
	"context"
	"errors"
	"math"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// ErrInvalidPolicy is returned by Validate.
var ErrInvalidPolicy = errors.New("invalid backoff policy")

// Policy describes an exponential backoff: the n-th wait (starting at 0) is
// Base * Multiplier^n, capped at Cap, optionally spread by ±Jitter.
type Policy struct {
	// Base is the first wait.
	Base time.Duration

	// Multiplier grows the wait after each attempt. Values below 1 are
	// treated as 1.
	Multiplier float64

	// Cap bounds a single wait. Zero means no cap.
	Cap time.Duration

	// Jitter is the randomization factor in [0,1]. Zero keeps waits exact.
	Jitter float64
}

// DefaultPolicy doubles from 30s up to one hour without jitter.
func DefaultPolicy() Policy {
	return Policy{Base: 30 * time.Second, Multiplier: 2, Cap: time.Hour}
}

// Validate reports inconsistent settings.
func (p Policy) Validate() error {
	switch {
	case p.Base <= 0:
		return errors.Join(ErrInvalidPolicy, errors.New("base must be positive"))
	case p.Cap != 0 && p.Cap < p.Base:
		return errors.Join(ErrInvalidPolicy, errors.New("cap must not be below base"))
	case p.Jitter < 0 || p.Jitter > 1:
		return errors.Join(ErrInvalidPolicy, errors.New("jitter must be within [0,1]"))
	}
	return nil
}

func (p Policy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}

func (p Policy) maxInterval() time.Duration {
	if p.Cap <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return p.Cap
}

// New returns a fresh backoff sequence that never stops on its own. Each
// call to NextBackOff yields the next wait; Reset starts over at Base.
func (p Policy) New() *cbackoff.ExponentialBackOff {
	return cbackoff.NewExponentialBackOff(
		cbackoff.WithInitialInterval(p.Base),
		cbackoff.WithMultiplier(p.multiplier()),
		cbackoff.WithMaxInterval(p.maxInterval()),
		cbackoff.WithRandomizationFactor(p.Jitter),
		cbackoff.WithMaxElapsedTime(0),
	)
}

// Delay returns the un-jittered wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.Base) * math.Pow(p.multiplier(), float64(attempt))
	if limit := float64(p.maxInterval()); d >= limit {
		return p.maxInterval()
	}
	return time.Duration(d)
}

// Retry runs op until it succeeds, returns an error wrapped with
// Permanent, maxRetries retries are used up, or ctx is done. notify, when
// not nil, is called before every wait.
func (p Policy) Retry(ctx context.Context, maxRetries int, op func() error, notify func(err error, wait time.Duration)) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := cbackoff.WithContext(cbackoff.WithMaxRetries(p.New(), uint64(maxRetries)), ctx)
	return cbackoff.RetryNotify(op, b, notify)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return cbackoff.Permanent(err)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d. It returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
