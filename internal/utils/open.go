package utils

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenFolder shows dir in the platform file manager.
func OpenFolder(dir string) error {
	name, args := folderOpener(runtime.GOOS, dir)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open %s with %s: %w", dir, name, err)
	}
	return nil
}

func folderOpener(goos, dir string) (string, []string) {
	switch goos {
	case "windows":
		return "explorer", []string{dir}
	case "darwin":
		return "open", []string{dir}
	default:
		return "xdg-open", []string{dir}
	}
}
