package common

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", fmt.Errorf("search: %w", ErrTransientNetwork), true},
		{"malformed", fmt.Errorf("parse: %w", ErrMalformedResponse), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"configuration", fmt.Errorf("missing key: %w", ErrConfiguration), false},
		{"empty input", ErrEmptyInput, false},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, time.Duration(0), BackoffDelay(base, 0))
	assert.Equal(t, 100*time.Millisecond, BackoffDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, BackoffDelay(base, 3))
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
