package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	t.Run("exponential doubles per attempt", func(t *testing.T) {
		b := BackoffOptions{Strategy: BackoffExponential, InitialMs: 1000}
		assert.Equal(t, time.Second, b.Delay(1))
		assert.Equal(t, 2*time.Second, b.Delay(2))
		assert.Equal(t, 4*time.Second, b.Delay(3))
		assert.Equal(t, 8*time.Second, b.Delay(4))
	})

	t.Run("exponential caps at max", func(t *testing.T) {
		b := BackoffOptions{Strategy: BackoffExponential, InitialMs: 1000, MaxMs: 5000}
		assert.Equal(t, 4*time.Second, b.Delay(3))
		assert.Equal(t, 5*time.Second, b.Delay(4))
		assert.Equal(t, 5*time.Second, b.Delay(10))
	})

	t.Run("fixed ignores attempt number", func(t *testing.T) {
		b := BackoffOptions{Strategy: BackoffFixed, InitialMs: 250}
		assert.Equal(t, 250*time.Millisecond, b.Delay(1))
		assert.Equal(t, 250*time.Millisecond, b.Delay(7))
	})

	t.Run("zero initial defaults to one second", func(t *testing.T) {
		b := BackoffOptions{Strategy: BackoffExponential}
		assert.Equal(t, time.Second, b.Delay(1))
		assert.Equal(t, 2*time.Second, b.Delay(2))
	})

	t.Run("max applies to fixed too", func(t *testing.T) {
		b := BackoffOptions{Strategy: BackoffFixed, InitialMs: 9000, MaxMs: 3000}
		assert.Equal(t, 3*time.Second, b.Delay(1))
	})
}
