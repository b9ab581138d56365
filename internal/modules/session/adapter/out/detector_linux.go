//go:build linux

package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// XdotoolProbe asks xdotool for the active X11 window and resolves its process
// name through procfs.
type XdotoolProbe struct {
	Runner   CommandRunner
	ProcRoot string
}

func platformProbe(runner CommandRunner) WindowProbe {
	return XdotoolProbe{Runner: runner, ProcRoot: "/proc"}
}

func (p XdotoolProbe) Probe(ctx context.Context) (string, string, error) {
	title, err := p.Runner.Run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return "", "", fmt.Errorf("read window title: %w", err)
	}
	rawPID, err := p.Runner.Run(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", "", fmt.Errorf("read window pid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(rawPID))
	if err != nil || pid <= 0 {
		return "", "", fmt.Errorf("parse window pid %q", strings.TrimSpace(rawPID))
	}
	comm, err := os.ReadFile(filepath.Join(p.ProcRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", "", fmt.Errorf("read process name: %w", err)
	}
	return strings.TrimSpace(string(comm)), strings.TrimSpace(title), nil
}
