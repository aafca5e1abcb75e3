package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func newTestBreaker(opts ...Option) (*Breaker, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("test", opts...)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(2))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.NoError(t, b.Do(ctx, ok))
	_ = b.Do(ctx, fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCoolDown(10*time.Second),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	*clock = clock.Add(5 * time.Second)
	assert.ErrorIs(t, b.Do(ctx, ok), ErrOpen)

	*clock = clock.Add(5 * time.Second)
	require.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithCoolDown(time.Second))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	*clock = clock.Add(time.Second)
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrOpen)
}

func TestBreaker_HalfOpenCallLimit(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithCoolDown(time.Second))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	*clock = clock.Add(time.Second)

	err := b.Do(ctx, func(ctx context.Context) error {
		// The single half-open slot is taken while this call runs.
		assert.ErrorIs(t, b.Do(ctx, ok), ErrOpen)
		return nil
	})
	require.NoError(t, err)
}

func TestBreaker_IgnoresCancellationAndClassifiedErrors(t *testing.T) {
	notFound := errors.New("not found")
	b, _ := newTestBreaker(
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, notFound) }),
	)
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	_ = b.Do(ctx, func(context.Context) error { return notFound })
	assert.Equal(t, StateClosed, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "test", b.Name())
}
