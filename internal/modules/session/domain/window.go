package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseWindowInfo derives an application name and a best-guess file path from
// a process name and the focused window's title. Titles usually read
// "file - application" or "application - file".
func ParseWindowInfo(processName, windowTitle string) (string, string) {
	app := normalizeProcessName(processName)

	file := Unknown
	var parts []string
	for _, p := range strings.Split(windowTitle, " - ") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= 2 {
		for _, p := range parts {
			if strings.ContainsAny(p, `/\.`) {
				file = strings.TrimSpace(p)
				break
			}
		}
	}
	return app, file
}

func normalizeProcessName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, ".exe", "")
	name = strings.ReplaceAll(name, "-", " ")
	if strings.TrimSpace(name) == "" {
		return Unknown
	}
	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
