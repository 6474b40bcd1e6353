package spqrlog

import (
	"testing"
	"time"
)

func TestRouteLoggerShouldLogRoute(t *testing.T) {
	tests := []struct {
		name          string
		minDuration   time.Duration
		routeDuration time.Duration
		want          bool
	}{
		{
			name:          "logging is disabled",
			minDuration:   -1,
			routeDuration: time.Hour,
			want:          false,
		},
		{
			name:          "duration equals threshold",
			minDuration:   time.Second,
			routeDuration: time.Second,
			want:          false,
		},
		{
			name:          "duration exceeds threshold",
			minDuration:   time.Second,
			routeDuration: time.Second + time.Millisecond,
			want:          true,
		},
		{
			name:          "zero threshold logs everything slower than zero",
			minDuration:   0,
			routeDuration: time.Microsecond,
			want:          true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger := NewRouteLogger(tc.minDuration)
			got := logger.shouldLogRoute(tc.routeDuration)
			if got != tc.want {
				t.Fatalf("shouldLogRoute(%s) = %t, want %t", tc.routeDuration, got, tc.want)
			}
		})
	}
}
