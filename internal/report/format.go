package report

import (
	"fmt"
	"path/filepath"
)

// ShortenPath keeps the file name and as much of the directory as fits
func ShortenPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	dir, file := filepath.Split(path)
	if len(file) >= maxLen-3 {
		return "..." + file[len(file)-(maxLen-3):]
	}

	remaining := maxLen - len(file) - 4 // 4 for ".../"
	if remaining > 0 && len(dir) > remaining {
		dir = dir[len(dir)-remaining:]
	}
	return "..." + dir + file
}

// FormatSize renders a byte count with a binary unit
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
