//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	serviceName = "wiistream.service"
	servicePath = "/etc/systemd/system/wiistream.service"
)

func install(logger *slog.Logger, configPath string, serveArgs []string) error {
	exePath, err := currentExecutable()
	if err != nil {
		return err
	}

	unit := systemdUnitContent(exePath, configPath, serveArgs)
	if err := os.WriteFile(servicePath, []byte(unit), 0o644); err != nil {
		return err
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"restart", serviceName},
	} {
		if err := runSystemctl(args...); err != nil {
			return err
		}
	}

	logger.Info("wiistream bridge service installed", "path", servicePath, "exe", exePath)
	return nil
}

func uninstall(logger *slog.Logger) error {
	var errs []error
	for _, args := range [][]string{{"stop", serviceName}, {"disable", serviceName}} {
		if err := runSystemctl(args...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(servicePath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := runSystemctl("daemon-reload"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("wiistream bridge service removed", "path", servicePath)
	return nil
}

// systemdUnitContent renders the unit. configPath, when set, is passed as
// the root --config flag ahead of the serve command.
func systemdUnitContent(exePath, configPath string, serveArgs []string) string {
	execStart := fmt.Sprintf("%q", exePath)
	if configPath != "" {
		execStart += fmt.Sprintf(" %q", "--config="+configPath)
	}
	execStart += " serve"
	for _, a := range serveArgs {
		execStart += " " + fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf(`[Unit]
Description=wiistream frame bridge
After=network-online.target bluetooth.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, execStart, filepath.Dir(exePath))
}

func runSystemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
