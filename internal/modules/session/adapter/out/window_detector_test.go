package out_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	sessionadapter "timetrack/internal/modules/session/adapter/out"
	"timetrack/internal/modules/session/domain"
	"timetrack/internal/platform/logging"
)

type probeFunc func(ctx context.Context) (string, string, error)

func (f probeFunc) Probe(ctx context.Context) (string, string, error) { return f(ctx) }

func TestWindowDetectorParsesProbeResult(t *testing.T) {
	t.Parallel()
	probe := probeFunc(func(context.Context) (string, string, error) {
		return "notepad.exe", "document.txt - Notepad", nil
	})
	d := sessionadapter.NewWindowDetector(probe, time.Second, logging.NewNop())

	app, file := d.CurrentActivity(context.Background())
	assert.Equal(t, "Notepad", app)
	assert.Equal(t, "document.txt", file)
}

func TestWindowDetectorFailureYieldsUnknown(t *testing.T) {
	t.Parallel()
	probe := probeFunc(func(context.Context) (string, string, error) {
		return "", "", errors.New("xdotool: executable file not found")
	})
	d := sessionadapter.NewWindowDetector(probe, time.Second, logging.NewNop())

	app, file := d.CurrentActivity(context.Background())
	assert.Equal(t, domain.Unknown, app)
	assert.Equal(t, domain.Unknown, file)
}

func TestWindowDetectorTimeoutYieldsUnknown(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)
	probe := probeFunc(func(context.Context) (string, string, error) {
		<-release
		return "code", "main.go - Code", nil
	})
	d := sessionadapter.NewWindowDetector(probe, 20*time.Millisecond, logging.NewNop())

	started := time.Now()
	app, file := d.CurrentActivity(context.Background())
	assert.Equal(t, domain.Unknown, app)
	assert.Equal(t, domain.Unknown, file)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestExecRunnerReportsMissingBinary(t *testing.T) {
	t.Parallel()
	_, err := sessionadapter.ExecRunner{}.Run(context.Background(), "timetrack-no-such-helper")
	assert.Error(t, err)
}
