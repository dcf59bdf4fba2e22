package utils

import (
	"strings"
	"unicode"
)

// SanitizeInput cleans input by removing leading/trailing spaces and special characters
func SanitizeInput(input string) string {
	// Remove leading and trailing spaces
	input = strings.TrimSpace(input)
	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
	return input
}
