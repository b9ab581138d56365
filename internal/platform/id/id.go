package id

import "github.com/google/uuid"

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID in any of the accepted textual forms.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Normalize returns the canonical lowercase hyphenated form of s.
func Normalize(s string) (string, bool) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
