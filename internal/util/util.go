//go:build !windows

// Package util holds platform helpers for the serve command.
package util

// IsRunFromGUI reports whether the process was started by double click.
// Only Windows can tell; elsewhere the bridge runs under a shell or a
// service manager.
func IsRunFromGUI() bool {
	return false
}

// HideConsoleWindow is a no-op outside Windows.
func HideConsoleWindow() {}
