package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want models.ErrorCode
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, models.ErrCodeTimeout},
		{"cancelled", context.Canceled, models.ErrCodeProcessCrash},
		{"rate limit text", errors.New("API error: rate limit exceeded"), models.ErrCodeRateLimit},
		{"http 429", errors.New("unexpected status 429"), models.ErrCodeRateLimit},
		{"overloaded", errors.New("overloaded_error: try again"), models.ErrCodeRateLimit},
		{"timeout text", errors.New("request timeout"), models.ErrCodeTimeout},
		{"connection reset", errors.New("read: connection reset by peer"), models.ErrCodeProcessCrash},
		{"no such host", errors.New("dial tcp: no such host"), models.ErrCodeURLUnreachable},
		{"other", errors.New("something odd"), models.ErrCodeUnknown},
		{"app error passthrough", models.NewAppError(models.ErrCodeInvalidOutput, "bad json"), models.ErrCodeInvalidOutput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 60*time.Second, RetryDelay(models.ErrCodeRateLimit, 0))
	assert.Equal(t, 120*time.Second, RetryDelay(models.ErrCodeRateLimit, 1))
	assert.Equal(t, 240*time.Second, RetryDelay(models.ErrCodeRateLimit, 2))

	assert.Equal(t, 5*time.Second, RetryDelay(models.ErrCodeTimeout, 0))
	assert.Equal(t, 10*time.Second, RetryDelay(models.ErrCodeTimeout, 1))
	assert.Equal(t, 20*time.Second, RetryDelay(models.ErrCodeInvalidOutput, 2))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(models.ErrCodeRateLimit))
	assert.True(t, Retryable(models.ErrCodeTimeout))
	assert.True(t, Retryable(models.ErrCodeProcessCrash))
	assert.True(t, Retryable(models.ErrCodeInvalidOutput))
	assert.True(t, Retryable(models.ErrCodeUnknown))

	assert.False(t, Retryable(models.ErrCodeURLUnreachable))
}
