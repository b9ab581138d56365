package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"timetrack/internal/modules/session/domain"
	sessionout "timetrack/internal/modules/session/port/out"
	"timetrack/internal/platform/fsutil"
	"timetrack/internal/platform/markdown"
	"timetrack/internal/platform/slug"
)

var statsBlock = markdown.ManagedBlock{
	Start: "<!-- timetrack:stats:start -->",
	End:   "<!-- timetrack:stats:end -->",
}

// MarkdownNoteExporter writes one note per session. Re-exporting refreshes the
// frontmatter and the stats block and keeps the rest of the note.
type MarkdownNoteExporter struct {
	dir string
}

func NewMarkdownNoteExporter(dir string) sessionout.NoteExporter {
	return &MarkdownNoteExporter{dir: dir}
}

func (e *MarkdownNoteExporter) Export(_ context.Context, session domain.Session, now time.Time) (string, error) {
	path, err := e.locate(session)
	if err != nil {
		return "", err
	}

	body := "# " + session.Name + "\n"
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		_, prior, splitErr := markdown.SplitFrontmatter(string(existing))
		if splitErr != nil {
			return "", fmt.Errorf("parse existing note %s: %w", path, splitErr)
		}
		body = prior
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read existing note %s: %w", path, err)
	}

	body = statsBlock.Replace(body, renderStats(session, now))
	content, err := markdown.RenderFrontmatter(noteFields(session, now), body)
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write note %s: %w", path, err)
	}
	return path, nil
}

// locate reuses the note already exported for this session, even if a restart
// moved its start time; otherwise it derives a dated path.
func (e *MarkdownNoteExporter) locate(session domain.Session) (string, error) {
	stem := slug.Make(session.Name)
	found := ""
	walkErr := filepath.WalkDir(e.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		fm, _, err := markdown.SplitFrontmatter(string(raw))
		if err != nil {
			return nil
		}
		if id, _ := fm["id"].(string); id == session.ID {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("scan notes in %s: %w", e.dir, walkErr)
	}
	if found != "" {
		return found, nil
	}
	start := session.StartTime
	return filepath.Join(e.dir, start.Format("2006"), start.Format("01"), start.Format("02"), start.Format("150405")+"-"+stem+".md"), nil
}

func noteFields(session domain.Session, now time.Time) []markdown.Field {
	var ended any
	if session.EndTime != nil {
		ended = session.EndTime.Format(time.RFC3339)
	}
	return []markdown.Field{
		{Key: "schema_version", Value: domain.SchemaVersion},
		{Key: "id", Value: session.ID},
		{Key: "name", Value: session.Name},
		{Key: "started_at", Value: session.StartTime.Format(time.RFC3339)},
		{Key: "ended_at", Value: ended},
		{Key: "is_active", Value: session.IsActive},
		{Key: "duration_seconds", Value: int64(session.Duration(now) / time.Second)},
		{Key: "active_seconds", Value: int64(session.TotalActiveTime(now) / time.Second)},
	}
}

func renderStats(session domain.Session, now time.Time) string {
	var b strings.Builder
	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(&b, "- Started: %s\n", session.StartTime.Format("2006-01-02 15:04:05"))
	if session.EndTime != nil {
		fmt.Fprintf(&b, "- Ended: %s\n", session.EndTime.Format("2006-01-02 15:04:05"))
	} else {
		b.WriteString("- Ended: still running\n")
	}
	fmt.Fprintf(&b, "- Duration: %s\n", roundDuration(session.Duration(now)))
	fmt.Fprintf(&b, "- Active time: %s\n", roundDuration(session.TotalActiveTime(now)))

	writeTotals(&b, "Applications", "Application", domain.SortedTotals(session.ApplicationTotals(now)))
	writeTotals(&b, "Files", "File", domain.SortedTotals(session.FileTotals(now)))

	if len(session.Activities) > 0 {
		b.WriteString("\n### Activities\n\n| Started | Application | File | Time |\n| --- | --- | --- | --- |\n")
		for _, a := range session.Activities {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", a.StartTime.Format("15:04:05"), escapeCell(a.ApplicationName), escapeCell(a.FilePath), roundDuration(a.Duration(now)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTotals(b *strings.Builder, title, column string, totals []domain.Total) {
	if len(totals) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n| %s | Time |\n| --- | --- |\n", title, column)
	for _, t := range totals {
		fmt.Fprintf(b, "| %s | %s |\n", escapeCell(t.Key), roundDuration(t.Duration))
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Second)
}
