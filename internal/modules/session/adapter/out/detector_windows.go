//go:build windows

package out

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW = user32.NewProc("GetWindowTextW")
)

// Win32Probe reads the foreground window through user32 and the owning
// process image through kernel32.
type Win32Probe struct{}

func platformProbe(CommandRunner) WindowProbe {
	return Win32Probe{}
}

func (Win32Probe) Probe(context.Context) (string, string, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", "", errors.New("no foreground window")
	}

	title := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))
	windowTitle := windows.UTF16ToString(title[:n])

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", "", fmt.Errorf("get window process id: %w", err)
	}
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", "", fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return "", "", fmt.Errorf("query process image: %w", err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), windowTitle, nil
}
