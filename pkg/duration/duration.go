// Human readable durations
package duration

import (
	"fmt"
	"math"
	"time"
)

type unit struct {
	singular string
	plural   string
	size     time.Duration
}

// largest first
var units = []unit{
	{"day", "days", 24 * time.Hour},
	{"hour", "hours", time.Hour},
	{"minute", "minutes", time.Minute},
	{"second", "seconds", time.Second},
}

// rounds to the largest unit that yields at least one: "2 hours", "1 minute", "450 milliseconds"
func Humanize(dur time.Duration) string {
	for _, u := range units {
		if num := int(math.Round(float64(dur) / float64(u.size))); num > 0 {
			return plural(num, u.singular, u.plural)
		}
	}

	return plural(int(dur.Milliseconds()), "millisecond", "milliseconds")
}

// exact to the second, for countdowns: "04:05" or "1:02:03"
func Clock(dur time.Duration) string {
	if dur < 0 {
		dur = 0
	}

	totalSeconds := int(dur.Round(time.Second) / time.Second)

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}

	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func plural(num int, singular string, plural string) string {
	if num == 1 {
		return fmt.Sprintf("%d %s", num, singular)
	}

	return fmt.Sprintf("%d %s", num, plural)
}
