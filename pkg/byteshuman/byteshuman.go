// Converts between byte amounts and their human readable form
package byteshuman

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	B   = 1
	KiB = 1024 * B
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
	PiB = 1024 * TiB
)

type unit struct {
	suffix string
	size   uint64
}

// largest first
var units = []unit{
	{"PiB", PiB},
	{"TiB", TiB},
	{"GiB", GiB},
	{"MiB", MiB},
	{"KiB", KiB},
}

func Humanize(num uint64) string {
	for _, u := range units {
		if num >= u.size {
			return fmt.Sprintf("%.02f %s", float64(num)/float64(u.size), u.suffix)
		}
	}

	return fmt.Sprintf("%d B", num)
}

var parseRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([kmgtp]?)(?:i?b)?$`)

// "512MiB", "1.5 GiB", "2g", "4096" (bytes). units are always binary.
func Parse(input string) (uint64, error) {
	match := parseRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(input)))
	if match == nil {
		return 0, fmt.Errorf("not a byte amount: %q", input)
	}

	num, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, err
	}

	multiplier := map[string]uint64{
		"":  B,
		"k": KiB,
		"m": MiB,
		"g": GiB,
		"t": TiB,
		"p": PiB,
	}[match[2]]

	return uint64(num * float64(multiplier)), nil
}
