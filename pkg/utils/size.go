package utils

import "fmt"

// FormatSize renders a byte count as a human-readable string for status and
// log lines, e.g. "1.5 MB".
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		return "invalid"
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
