package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/configpaths"
	"github.com/Alia5/wiistream/internal/log"
	"github.com/Alia5/wiistream/internal/server/auth"
	"github.com/Alia5/wiistream/internal/server/bridge"
	"github.com/Alia5/wiistream/internal/sink"
	"github.com/Alia5/wiistream/internal/util"
)

const keyFileName = "wiistream.key.txt"

// Serve runs the frame bridge.
type Serve struct {
	Bridge bridge.Config `embed:""`
	Auth   bool          `help:"Require the encrypted handshake; without --password a key is generated and stored in the config dir" default:"false" env:"WIISTREAM_SERVE_AUTH"`
	Accel  bool          `help:"Decode acceleration reports" default:"true" negatable:"" env:"WIISTREAM_SERVE_ACCEL"`
	IR     bool          `name:"ir" help:"Decode infrared reports" default:"false" negatable:"" env:"WIISTREAM_SERVE_IR"`
	Sinks  Sinks         `embed:"" prefix:"sink."`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger)
}

// resolvePassword loads the stored bridge key, generating one on first use.
func resolvePassword(dir string, logger *slog.Logger) (string, error) {
	keyFilePath := filepath.Join(dir, keyFileName)
	if pwd, err := os.ReadFile(keyFilePath); err == nil {
		return strings.TrimSpace(string(pwd)), nil
	}
	newPwd, err := auth.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate bridge password: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config dir for key file: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newPwd), 0o600); err != nil {
		return "", fmt.Errorf("failed to write bridge password to file: %w", err)
	}
	logger.Info("Generated bridge password", "path", keyFilePath)
	logger.Info("-------------------------------------")
	logger.Info("Your wiistream bridge password is:")
	logger.Info("-------------------------------------")
	logger.Info(newPwd)
	logger.Info("-------------------------------------")
	logger.Info("You can change this password at any time by editing the file")
	return newPwd, nil
}

func (s *Serve) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if s.Auth && s.Bridge.Password == "" {
		dir, err := configpaths.DefaultConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve key file path: %w", err)
		}
		if s.Bridge.Password, err = resolvePassword(dir, logger); err != nil {
			return err
		}
	}

	sinks, err := s.Sinks.Open(logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	feat := wiimote.Features{Acceleration: s.Accel, Infrared: s.IR}
	factory := func(session string, remote net.Addr) wiimote.Device {
		logger.Debug("new controller", "session", session, "remote", remote.String())
		return sink.NewController(session, feat, sinks.sinks...)
	}

	srv, err := bridge.New(s.Bridge, factory, logger, rawLogger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		logger.Error("failed to start bridge", "error", err)
		if util.IsRunFromGUI() {
			fmt.Println("Press any key to exit...")
			b := make([]byte, 1)
			_, _ = os.Stdin.Read(b)
		}
		return err
	}
	defer srv.Close()

	if util.IsRunFromGUI() {
		go func() {
			time.Sleep(250 * time.Millisecond)
			util.HideConsoleWindow()
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down bridge", "sessions", len(srv.Sessions()))
		return nil
	case err := <-sinks.Err():
		return err
	}
}
