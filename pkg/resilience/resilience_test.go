package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

var errBroker = errors.New("broker not available")

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errBroker
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errBroker
	})
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, errBroker) },
	}
	err := Retry(context.Background(), "publish", cfg, func() error {
		calls++
		return errBroker
	})
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 1, calls)
}

func TestWithTimeout(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	err := WithTimeout(context.Background(), 10*time.Millisecond, "query", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "deadline exceeded", entry["msg"])
	assert.Equal(t, "timeout", entry["component"])
	assert.Equal(t, "query", entry["operation"])
	assert.Contains(t, entry, "limit")

	buf.Reset()
	err = WithTimeout(context.Background(), time.Second, "query", func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Zero(t, buf.Len())
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "query", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	// Either branch may win; neither reports a timeout.
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	errDown := errors.New("connection refused")
	b := NewBreaker("cache", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	fail := func() error { return errDown }
	assert.ErrorIs(t, b.Do(fail), errDown)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), errDown)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock = clock.Add(time.Minute)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensWhenProbeFails(t *testing.T) {
	errDown := errors.New("timeout")
	b := NewBreaker("cache", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	_ = b.Do(func() error { return errDown })
	clock = clock.Add(time.Second)
	assert.ErrorIs(t, b.Do(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	errMiss := errors.New("key not found")
	b := NewBreaker("cache", BreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, errMiss) },
	})
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(func() error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}
