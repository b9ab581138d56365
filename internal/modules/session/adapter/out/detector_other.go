//go:build !linux && !darwin && !windows

package out

func platformProbe(CommandRunner) WindowProbe {
	return unsupportedProbe{}
}
