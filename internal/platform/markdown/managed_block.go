package markdown

import "strings"

// ManagedBlock is a marker-delimited region of a note that the tool owns.
// Everything outside the markers belongs to the user and survives rewrites.
type ManagedBlock struct {
	Start string
	End   string
}

// Replace swaps the block's content for generated, appending a new block
// when body has none yet.
func (b ManagedBlock) Replace(body, generated string) string {
	block := b.Start + "\n" + generated + "\n" + b.End
	start, end, ok := b.bounds(body)
	if ok {
		return body[:start] + block + body[end:]
	}
	switch {
	case strings.TrimSpace(body) == "":
		return block + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + block + "\n"
	default:
		return body + "\n\n" + block + "\n"
	}
}

// Content returns the text between the markers.
func (b ManagedBlock) Content(body string) (string, bool) {
	start, end, ok := b.bounds(body)
	if !ok {
		return "", false
	}
	inner := body[start+len(b.Start) : end-len(b.End)]
	return strings.Trim(inner, "\n"), true
}

func (b ManagedBlock) bounds(body string) (int, int, bool) {
	start := strings.Index(body, b.Start)
	if start < 0 {
		return 0, 0, false
	}
	rel := strings.Index(body[start+len(b.Start):], b.End)
	if rel < 0 {
		return 0, 0, false
	}
	return start, start + len(b.Start) + rel + len(b.End), true
}
