package duration

import (
	"testing"
	"time"

	"github.com/function61/gokit/assert"
)

func TestHumanize(t *testing.T) {
	tcs := []struct {
		input  string
		output string
	}{
		{"0ms", "0 milliseconds"},
		{"1ms", "1 millisecond"},
		{"499ms", "499 milliseconds"},
		{"500ms", "1 second"},
		{"29s", "29 seconds"},
		{"30s", "1 minute"},
		{"89m", "1 hour"},
		{"90m", "2 hours"},
		{"12h", "1 day"},
		{"36h", "2 days"},
	}

	for _, tc := range tcs {
		tc := tc // pin

		t.Run(tc.input, func(t *testing.T) {
			dur, err := time.ParseDuration(tc.input)
			assert.Assert(t, err == nil)

			assert.EqualString(t, Humanize(dur), tc.output)
		})
	}
}

func TestClock(t *testing.T) {
	assert.EqualString(t, Clock(0), "00:00")
	assert.EqualString(t, Clock(-time.Second), "00:00")
	assert.EqualString(t, Clock(1500*time.Millisecond), "00:02")
	assert.EqualString(t, Clock(4*time.Minute+5*time.Second), "04:05")
	assert.EqualString(t, Clock(time.Hour+2*time.Minute+3*time.Second), "1:02:03")
}
