package slug

import (
	"regexp"
	"strings"
)

const maxLen = 48

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make turns a session name into a lowercase, dash-separated file name stem.
func Make(input string) string {
	s := nonAlphaNum.ReplaceAllString(strings.ToLower(strings.TrimSpace(input)), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return "session"
	}
	return s
}
