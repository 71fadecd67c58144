// Utils for text-based UIs
package tui

import (
	"fmt"
)

type ProgressBarTheme struct {
	Filled rune
	Vacant rune
}

func ProgressBarDefaultTheme() ProgressBarTheme {
	return ProgressBarTheme{'█', '░'}
}

// for terminals that can't render block characters
func ProgressBarASCIITheme() ProgressBarTheme {
	return ProgressBarTheme{'#', '-'}
}

// pct is clamped to [0, 100]
func ProgressBar(pct int, barLength int, theme ProgressBarTheme) string {
	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}

	filledCount := barLength * pct / 100

	bar := make([]rune, barLength)
	for i := range bar {
		if i < filledCount {
			bar[i] = theme.Filled
		} else {
			bar[i] = theme.Vacant
		}
	}

	return string(bar)
}

// percentage of done/total, safe for total=0
func Percent(done uint64, total uint64) int {
	if total == 0 {
		return 100
	}

	return int(100 * done / total)
}

// "[██████░░░░]  60% <detail>"
func ProgressLine(done uint64, total uint64, barLength int, theme ProgressBarTheme, detail string) string {
	pct := Percent(done, total)

	return fmt.Sprintf("[%s] %3d%% %s", ProgressBar(pct, barLength, theme), pct, detail)
}
