package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

const maxInferenceRetries = 3

// Classify maps an inference failure onto a retryable error class.
// The class drives the retry delay schedule.
func Classify(err error) models.ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*models.AppError); ok && appErr.Code != "" {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrCodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrCodeProcessCrash
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "overloaded"):
		return models.ErrCodeRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return models.ErrCodeTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof"):
		return models.ErrCodeProcessCrash
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "unreachable"):
		return models.ErrCodeURLUnreachable
	default:
		return models.ErrCodeUnknown
	}
}

// RetryDelay returns the backoff before retry n (0-based). Rate-limit
// failures wait a minute base; everything else five seconds, doubling
// per retry.
func RetryDelay(code models.ErrorCode, retry int) time.Duration {
	base := 5 * time.Second
	if code == models.ErrCodeRateLimit {
		base = 60 * time.Second
	}
	delay := base
	for i := 0; i < retry; i++ {
		delay *= 2
	}
	return delay
}

// Retryable reports whether the class is worth another attempt.
func Retryable(code models.ErrorCode) bool {
	switch code {
	case models.ErrCodeRateLimit, models.ErrCodeTimeout, models.ErrCodeProcessCrash, models.ErrCodeInvalidOutput, models.ErrCodeUnknown:
		return true
	default:
		return false
	}
}
