package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit text", errors.New("Rate limit reached for requests"), KindRateLimit},
		{"quota text", errors.New("You exceeded your current quota"), KindRateLimit},
		{"context text", errors.New("maximum context length is 8192"), KindContextTooLarge},
		{"token text", errors.New("too many tokens in request"), KindContextTooLarge},
		{"generic", errors.New("internal server error"), KindAPIError},
		{
			"structured kind wins over message",
			&providers.ProviderError{Provider: "openai", Kind: providers.ErrorKindRateLimit, Message: "token bucket empty"},
			KindRateLimit,
		},
		{
			"wrapped structured kind",
			fmt.Errorf("call failed: %w", &providers.ProviderError{Provider: "anthropic", Kind: providers.ErrorKindContextTooLarge}),
			KindContextTooLarge,
		},
		{
			"unknown kind falls back to message",
			&providers.ProviderError{Provider: "local", Message: "quota exhausted"},
			KindRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func newTestPolicy(cfg Config, nonRetryable ...error) (*Policy, *[]time.Duration) {
	p := NewPolicy(cfg, nonRetryable...)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return p, &slept
}

func TestRecover_Decisions(t *testing.T) {
	p, slept := newTestPolicy(DefaultConfig())
	ctx := context.Background()

	d, err := p.Recover(ctx, errors.New("rate limit exceeded"), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, KindRateLimit, d.Kind)
	assert.Equal(t, "local-mistral", d.FallbackModel)
	assert.False(t, d.ReduceContext)
	assert.Equal(t, 60*time.Second, d.Delay)

	d, err = p.Recover(ctx, errors.New("context too long"), 2, 1)
	require.NoError(t, err)
	assert.True(t, d.ReduceContext)
	assert.Empty(t, d.FallbackModel)
	assert.Zero(t, d.Delay)

	d, err = p.Recover(ctx, errors.New("bad gateway"), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, KindAPIError, d.Kind)
	assert.Equal(t, 5*time.Second, d.Delay)

	assert.Equal(t, []time.Duration{60 * time.Second, 0, 5 * time.Second}, *slept)
}

func TestRecover_ExhaustedReturnsOriginalError(t *testing.T) {
	p, slept := newTestPolicy(DefaultConfig())
	original := errors.New("rate limit")

	_, err := p.Recover(context.Background(), original, 4, 0)
	assert.Same(t, original, err)
	assert.Empty(t, *slept)
}

func TestRecover_NonRetryable(t *testing.T) {
	errNoModel := errors.New("no available model")
	p, slept := newTestPolicy(DefaultConfig(), errNoModel)

	_, err := p.Recover(context.Background(), fmt.Errorf("select: %w", errNoModel), 1, 3)
	assert.ErrorIs(t, err, errNoModel)

	_, err = p.Recover(context.Background(), context.Canceled, 1, 3)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, *slept)
}

func TestRecover_CancelledDuringDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIErrorDelay = time.Hour
	p := NewPolicy(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Recover(ctx, errors.New("server error"), 1, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicy_ExponentialDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExponentialBackoff = true
	cfg.APIErrorDelay = time.Second
	cfg.MaxBackoff = 3 * time.Second
	p := NewPolicy(cfg)

	assert.Equal(t, time.Second, p.Delay(KindAPIError, 1))
	assert.Equal(t, 2*time.Second, p.Delay(KindAPIError, 2))
	assert.Equal(t, 3*time.Second, p.Delay(KindAPIError, 3))
	assert.Equal(t, 60*time.Second, p.Delay(KindRateLimit, 3))
}

func TestBackoff(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.Duration(0))
	assert.Equal(t, 400*time.Millisecond, b.Duration(3))
	assert.Equal(t, time.Second, b.Duration(10))

	jittered := Backoff{Initial: time.Second, JitterFraction: 0.1}
	for i := 0; i < 20; i++ {
		d := jittered.Duration(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}

	assert.Zero(t, Backoff{}.Duration(5))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
