package app

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand returns the command that opens path in the desktop viewer.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		return "xdg-open", []string{path}
	}
}

// showPlot opens path with the system image viewer without waiting for the
// viewer to exit.
func showPlot(path string) error {
	name, args := openCommand(runtime.GOOS, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s with %s: %w", path, name, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
