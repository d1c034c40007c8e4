//go:build windows

// Package util holds platform helpers for the serve command.
package util

import (
	"log/slog"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetConsoleWindow = kernel32.NewProc("GetConsoleWindow")
	procShowWindow       = user32.NewProc("ShowWindow")
	procFreeConsole      = kernel32.NewProc("FreeConsole")
)

// Parents that mean the bridge was started from a shell.
var shells = map[string]bool{
	"cmd.exe":             true,
	"powershell.exe":      true,
	"pwsh.exe":            true,
	"wt.exe":              true,
	"conhost.exe":         true,
	"windowsterminal.exe": true,
}

// IsRunFromGUI reports whether the process was started by double click in
// Explorer (or without any console at all).
func IsRunFromGUI() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	parent := strings.ToLower(parentProcessName())
	slog.Debug("parent process", "name", parent, "hasConsole", hwnd != 0)

	switch {
	case hwnd == 0:
		return true
	case shells[parent]:
		return false
	default:
		return parent == "explorer.exe"
	}
}

// HideConsoleWindow hides and detaches the console.
func HideConsoleWindow() {
	hwnd, _, _ := procGetConsoleWindow.Call()
	if hwnd == 0 {
		return
	}
	_, _, _ = procShowWindow.Call(hwnd, windows.SW_HIDE)
	_, _, _ = procFreeConsole.Call()
}

type procEntry struct {
	parent uint32
	exe    string
}

// parentProcessName walks one process snapshot and returns the executable
// name of our parent, or "" when it cannot be determined.
func parentProcessName() string {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(snapshot)

	procs := map[uint32]procEntry{}
	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	for err = windows.Process32First(snapshot, &pe); err == nil; err = windows.Process32Next(snapshot, &pe) {
		procs[pe.ProcessID] = procEntry{parent: pe.ParentProcessID, exe: windows.UTF16ToString(pe.ExeFile[:])}
	}

	self, ok := procs[uint32(os.Getpid())]
	if !ok || self.parent == 0 {
		return ""
	}
	return procs[self.parent].exe
}
