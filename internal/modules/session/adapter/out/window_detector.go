package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"timetrack/internal/modules/session/domain"
	sessionout "timetrack/internal/modules/session/port/out"
)

var errUnsupportedPlatform = errors.New("window inspection is not supported on this platform")

// WindowProbe reads the process name and title of the focused window.
type WindowProbe interface {
	Probe(ctx context.Context) (processName, windowTitle string, err error)
}

// CommandRunner runs an external helper and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// WindowDetector bounds every probe by a timeout and degrades any failure to
// Unknown values.
type WindowDetector struct {
	probe   WindowProbe
	timeout time.Duration
	logger  *zap.Logger
}

func NewWindowDetector(probe WindowProbe, timeout time.Duration, logger *zap.Logger) *WindowDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowDetector{probe: probe, timeout: timeout, logger: logger.Named("detector")}
}

// NewPlatformDetector picks the probe for the running OS.
func NewPlatformDetector(timeout time.Duration, logger *zap.Logger) sessionout.ActivityDetector {
	return NewWindowDetector(platformProbe(ExecRunner{}), timeout, logger)
}

type probeResult struct {
	process string
	title   string
	err     error
}

func (d *WindowDetector) CurrentActivity(ctx context.Context) (string, string) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	// Native probes may ignore ctx, so the wait happens here.
	done := make(chan probeResult, 1)
	go func() {
		process, title, err := d.probe.Probe(ctx)
		done <- probeResult{process: process, title: title, err: err}
	}()

	select {
	case <-ctx.Done():
		d.logger.Debug("window probe timed out", zap.Duration("timeout", d.timeout), zap.Error(ctx.Err()))
		return domain.Unknown, domain.Unknown
	case res := <-done:
		if res.err != nil {
			d.logger.Debug("window probe failed", zap.Error(res.err))
			return domain.Unknown, domain.Unknown
		}
		return domain.ParseWindowInfo(res.process, res.title)
	}
}

type unsupportedProbe struct{}

func (unsupportedProbe) Probe(context.Context) (string, string, error) {
	return "", "", errUnsupportedPlatform
}
