package out_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sessionadapter "timetrack/internal/modules/session/adapter/out"
	"timetrack/internal/platform/markdown"
)

func TestMarkdownNoteExporterWritesDatedNote(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exporter := sessionadapter.NewMarkdownNoteExporter(dir)
	session := sampleSessions()[0]

	path, err := exporter.Export(context.Background(), session, utc(12, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026", "03", "02", "090000-writing.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fm, body, err := markdown.SplitFrontmatter(string(raw))
	require.NoError(t, err)
	assert.Equal(t, session.ID, fm["id"])
	assert.Equal(t, "writing", fm["name"])
	assert.Equal(t, false, fm["is_active"])
	assert.Equal(t, 3600, fm["duration_seconds"])
	assert.Equal(t, 3300, fm["active_seconds"])
	assert.True(t, strings.HasPrefix(string(raw), "---\nschema_version: 1\nid: "), "frontmatter order must be stable")

	stats, ok := markdown.ManagedBlock{Start: "<!-- timetrack:stats:start -->", End: "<!-- timetrack:stats:end -->"}.Content(body)
	require.True(t, ok)
	assert.Contains(t, stats, "| Firefox | 30m0s |")
	assert.Contains(t, stats, "| main.go | 25m0s |")
	assert.Contains(t, body, "# writing")
}

func TestMarkdownNoteExporterKeepsUserText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exporter := sessionadapter.NewMarkdownNoteExporter(dir)
	session := sampleSessions()[1]

	path, err := exporter.Export(context.Background(), session, utc(11, 10))
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(raw, []byte("\nMy retro notes.\n")...), 0o644))

	session.StartTime = utc(11, 30)
	again, err := exporter.Export(context.Background(), session, utc(11, 45))
	require.NoError(t, err)
	assert.Equal(t, path, again, "re-export must find the existing note by id")

	updated, err := os.ReadFile(again)
	require.NoError(t, err)
	text := string(updated)
	assert.Contains(t, text, "My retro notes.")
	assert.Contains(t, text, "still running")
	assert.Equal(t, 1, strings.Count(text, "<!-- timetrack:stats:start -->"))
	assert.Contains(t, text, "duration_seconds: 900")
}
