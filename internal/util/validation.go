package util

import "strings"

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	return IsOneOf(value, validValues)
}

func IsOneOf(value string, validValues []string) bool {
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
