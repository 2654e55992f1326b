package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatMs renders a millisecond value. Values below 1ms get two decimals,
// values at or above switchAt are shown in seconds, anything in between
// gets one decimal in ms.
func FormatMs(ms, switchAt float64) string {
	switch {
	case ms < 1:
		return fmt.Sprintf("%.2fms", ms)
	case ms >= switchAt:
		return fmt.Sprintf("%.2fs", ms/1000)
	default:
		return fmt.Sprintf("%.1fms", ms)
	}
}

// Percent renders a ratio in [0,1] as a percentage with two decimals.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

// KB renders a byte count in kilobytes with two decimals.
func KB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/1024)
}

// Count formats a number with thousands separators.
func Count(n int64) string {
	sign := ""
	abs := uint64(n)
	if n < 0 {
		sign = "-"
		abs = uint64(-(n + 1)) + 1
	}

	str := strconv.FormatUint(abs, 10)
	if len(str) <= 3 {
		return sign + str
	}

	var result strings.Builder
	result.WriteString(sign)
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > len(sign) {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// Duration formats a run duration in a human-readable format.
func Duration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}
