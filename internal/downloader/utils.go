package downloader

import (
	"fmt"
	"time"
)

// formatDurationShort formats a duration in a short human-readable format.
// Returns format like "5s", "2m30s", or "1h15m" depending on duration length.
func formatDurationShort(d time.Duration) string {
	totalSeconds := int64(d.Seconds())

	if d < time.Minute {
		return fmt.Sprintf("%ds", totalSeconds)
	} else if d < time.Hour {
		mins := totalSeconds / 60
		secs := totalSeconds % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}

	hours := totalSeconds / 3600
	mins := (totalSeconds % 3600) / 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}

func formatRate(current int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "--/s"
	}
	rate := int64(float64(current) / elapsed.Seconds())
	if rate <= 0 {
		return "--/s"
	}
	return humanBytes(rate) + "/s"
}

// estimateETA returns zero when the total is unknown or nothing arrived yet.
func estimateETA(current, total int64, elapsed time.Duration) time.Duration {
	if total <= 0 || current <= 0 || elapsed <= 0 {
		return 0
	}
	remaining := total - current
	if remaining <= 0 {
		return 0
	}
	rate := float64(current) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second))
}
