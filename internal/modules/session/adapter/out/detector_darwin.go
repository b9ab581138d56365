//go:build darwin

package out

import (
	"context"
	"fmt"
	"strings"
)

const frontWindowScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set winTitle to ""
	try
		set winTitle to name of front window of frontApp
	end try
end tell
return appName & linefeed & winTitle`

type OSAScriptProbe struct {
	Runner CommandRunner
}

func platformProbe(runner CommandRunner) WindowProbe {
	return OSAScriptProbe{Runner: runner}
}

func (p OSAScriptProbe) Probe(ctx context.Context) (string, string, error) {
	out, err := p.Runner.Run(ctx, "osascript", "-e", frontWindowScript)
	if err != nil {
		return "", "", fmt.Errorf("query front window: %w", err)
	}
	app, title, _ := strings.Cut(strings.TrimRight(out, "\r\n"), "\n")
	return strings.TrimSpace(app), strings.TrimSpace(title), nil
}
