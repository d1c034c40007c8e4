package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Alia5/wiistream/internal/configpaths"
)

// ServiceCommand manages the bridge as a system service.
type ServiceCommand struct {
	Install   ServiceInstall   `cmd:"" help:"Install and start the bridge as a systemd service"`
	Uninstall ServiceUninstall `cmd:"" help:"Stop and remove the bridge service"`
}

type ServiceInstall struct {
	UnitConfig string   `name:"unit-config" help:"Config file the service loads (defaults to the first one found from here)" type:"path"`
	Args       []string `arg:"" optional:"" passthrough:"" help:"Extra arguments for 'wiistream serve'"`
}

func (s *ServiceInstall) Run(logger *slog.Logger) error {
	cfg, err := serviceConfig(s.UnitConfig)
	if err != nil {
		return err
	}
	if cfg != "" {
		logger.Info("service will load config", "path", cfg)
	}
	return install(logger, cfg, s.Args)
}

// serviceConfig picks the config file pinned into the service. The service
// runs with another home and working directory, so the file found from the
// installing shell is passed explicitly. An empty result means none exists.
func serviceConfig(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("service config: %w", err)
		}
		return abs, nil
	}
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths("")
	for _, group := range [][]string{jsonPaths, yamlPaths, tomlPaths} {
		for _, p := range group {
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return filepath.Abs(p)
			}
		}
	}
	return "", nil
}

type ServiceUninstall struct{}

func (s *ServiceUninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
