package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected string
	}{
		{-time.Minute, "Past due"},
		{42 * time.Minute, "42 minutes"},
		{2*time.Hour + 5*time.Minute, "2 hours, 5 minutes"},
		{50 * time.Hour, "2 days, 2 hours"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(tt.in))
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "250µs", FormatElapsed(250*time.Microsecond+400*time.Nanosecond))
	assert.Equal(t, "5.25ms", FormatElapsed(5250*time.Microsecond))
	assert.Equal(t, "1.50s", FormatElapsed(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatElapsed(2*time.Minute+5*time.Second))
}
