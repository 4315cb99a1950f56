package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1m", time.Minute, false},
		{"15m", 15 * time.Minute, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"h", 0, true},
		{"5s", 0, true},
		{"xh", 0, true},
		{"0h", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIntervalDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatIntervalRoundTrip(t *testing.T) {
	for _, s := range []string{"1m", "5m", "30m", "1h", "4h", "1d"} {
		d, err := ParseIntervalDuration(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatInterval(d))
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	got, err := NormalizeTimeframe("60m")
	require.NoError(t, err)
	assert.Equal(t, "1h", got)

	got, err = NormalizeTimeframe("24h")
	require.NoError(t, err)
	assert.Equal(t, "1d", got)

	_, err = NormalizeTimeframe("4x")
	assert.Error(t, err)
}
