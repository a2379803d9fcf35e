package storage

import (
	"fmt"
	"strings"
	"time"
)

// ExportFileName names a portable export: 2025-07-16_1530_the-last-embers.json
func ExportFileName(title string, now time.Time) string {
	return fmt.Sprintf("%s_%s.json", now.Format("2006-01-02_1504"), Slug(title, 40))
}

// Slug converts a string to a safe filename component
func Slug(s string, maxLen int) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/', r == '\\', r == ':', r == '.':
			b.WriteByte('-')
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}

	if s == "" {
		s = "story"
	}

	return s
}
