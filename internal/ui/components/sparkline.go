package components

import "strings"

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values in [lo, hi] as a row of block characters. At most
// width values are drawn; earlier values are dropped first.
func Sparkline(values []int, lo, hi, width int) string {
	if len(values) == 0 || hi <= lo {
		return ""
	}
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}

	var b strings.Builder
	steps := len(sparkRunes) - 1
	for _, v := range values {
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		idx := (v - lo) * steps / (hi - lo)
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
