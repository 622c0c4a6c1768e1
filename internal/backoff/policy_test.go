package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyDelay(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 30 * time.Second, Multiplier: 2, Cap: 2 * time.Minute}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 2 * time.Minute},
		{-1, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyNew(t *testing.T) {
	t.Parallel()

	t.Run("without jitter the sequence is exact and capped", func(t *testing.T) {
		t.Parallel()

		b := Policy{Base: time.Second, Multiplier: 2, Cap: 4 * time.Second}.New()
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
		for i, w := range want {
			if got := b.NextBackOff(); got != w {
				t.Errorf("step %d: expected %v, got %v", i, w, got)
			}
		}

		b.Reset()
		if got := b.NextBackOff(); got != time.Second {
			t.Errorf("expected reset to start at base, got %v", got)
		}
	})

	t.Run("never stops on elapsed time", func(t *testing.T) {
		t.Parallel()

		b := DefaultPolicy().New()
		if b.MaxElapsedTime != 0 {
			t.Errorf("expected unbounded sequence, got MaxElapsedTime %v", b.MaxElapsedTime)
		}
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		t.Parallel()

		b := Policy{Base: time.Second, Multiplier: 1, Jitter: 0.5}.New()
		for range 20 {
			got := b.NextBackOff()
			if got < 500*time.Millisecond || got > 1500*time.Millisecond+time.Nanosecond {
				t.Errorf("expected wait within ±50%%, got %v", got)
			}
		}
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{name: "default", p: DefaultPolicy()},
		{name: "zero base", p: Policy{}, wantErr: true},
		{name: "cap below base", p: Policy{Base: time.Minute, Cap: time.Second}, wantErr: true},
		{name: "jitter too large", p: Policy{Base: time.Second, Jitter: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.p.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestPolicyRetry(t *testing.T) {
	t.Parallel()

	p := Policy{Base: time.Millisecond, Multiplier: 2, Cap: 5 * time.Millisecond}
	errThrottled := errors.New("throttled")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		var waits []time.Duration
		err := p.Retry(context.Background(), 3, func() error {
			calls++
			if calls < 3 {
				return errThrottled
			}
			return nil
		}, func(_ error, d time.Duration) { waits = append(waits, d) })

		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
			t.Errorf("expected waits [1ms 2ms], got %v", waits)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := p.Retry(context.Background(), 2, func() error {
			calls++
			return errThrottled
		}, nil)

		if !errors.Is(err, errThrottled) {
			t.Errorf("expected last error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 1 call plus 2 retries, got %d", calls)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()

		calls := 0
		errGone := errors.New("gone")
		err := p.Retry(context.Background(), 5, func() error {
			calls++
			return Permanent(errGone)
		}, nil)

		if !errors.Is(err, errGone) || calls != 1 {
			t.Errorf("expected single call returning errGone, got %d calls and %v", calls, err)
		}
	})
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("returns after the duration", func(t *testing.T) {
		t.Parallel()
		if err := Sleep(context.Background(), time.Millisecond); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("expected Sleep to return promptly")
		}
	})
}
