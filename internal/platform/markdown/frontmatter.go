package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

// Field is one frontmatter entry; notes keep the order fields are given in.
type Field struct {
	Key   string
	Value any
}

// SplitFrontmatter separates a leading yaml block from the note body.
// Content without frontmatter yields an empty map and the content unchanged.
func SplitFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, separator) {
		return map[string]any{}, content, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, "\n"+separator)
	if idx < 0 {
		return nil, "", fmt.Errorf("invalid frontmatter: missing closing separator")
	}
	decoded := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &decoded); err != nil {
		return nil, "", fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return decoded, rest[idx+1+len(separator):], nil
}

// RenderFrontmatter writes fields as an ordered yaml mapping followed by body.
func RenderFrontmatter(fields []Field, body string) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		value := &yaml.Node{}
		if err := value.Encode(f.Value); err != nil {
			return "", fmt.Errorf("encode frontmatter field %s: %w", f.Key, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}, value)
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	buf := bytes.Buffer{}
	buf.WriteString(separator)
	buf.Write(raw)
	buf.WriteString(separator)
	if !strings.HasPrefix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(body)
	return buf.String(), nil
}
