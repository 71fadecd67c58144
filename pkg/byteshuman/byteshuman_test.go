package byteshuman

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestHumanize(t *testing.T) {
	for _, tc := range []struct {
		input  uint64
		output string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.50 KiB"},
		{1572864, "1.50 MiB"},
		{1610612736, "1.50 GiB"},
		{1649267441664, "1.50 TiB"},
		{1152921504606846976, "1024.00 PiB"},
	} {
		t.Run(tc.output, func(t *testing.T) {
			assert.EqualString(t, Humanize(tc.input), tc.output)
		})
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		input  string
		output uint64
	}{
		{"4096", 4096},
		{"512MiB", 512 * MiB},
		{"512 mb", 512 * MiB},
		{"1.5 GiB", 1536 * MiB},
		{"2g", 2 * GiB},
		{"1KiB", 1024},
	} {
		t.Run(tc.input, func(t *testing.T) {
			num, err := Parse(tc.input)
			assert.Assert(t, err == nil)
			assert.Assert(t, num == tc.output)
		})
	}

	_, err := Parse("lots")
	assert.EqualString(t, err.Error(), `not a byte amount: "lots"`)
}
