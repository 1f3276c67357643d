package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field format patterns shared by the wizard rule catalogs.
var (
	EmailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	PANPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)
	IFSCPattern   = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)
	MobilePattern = regexp.MustCompile(`^[0-9]{10}$`)
	PINPattern    = regexp.MustCompile(`^[0-9]{6}$`)
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// CharCount returns the number of characters in s after trimming surrounding whitespace
func CharCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// SanitizeString removes control characters, keeping tabs and line breaks
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
