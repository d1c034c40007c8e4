package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/log"
	"github.com/Alia5/wiistream/internal/sink"
	"github.com/Alia5/wiistream/internal/transport"
)

// Stream decodes one controller connection until it ends.
type Stream struct {
	Transport   string                  `help:"Controller transport: tcp (frame bridge), serial or hid" enum:"tcp,serial,hid" default:"tcp" env:"WIISTREAM_STREAM_TRANSPORT"`
	Addr        string                  `help:"Frame bridge address (host:port) for the tcp transport" env:"WIISTREAM_STREAM_ADDR"`
	Serial      transport.SerialOptions `embed:"" prefix:"serial."`
	HID         transport.HIDOptions    `embed:"" prefix:"hid."`
	Password    string                  `help:"Bridge password (enables the encrypted handshake)" env:"WIISTREAM_STREAM_PASSWORD"`
	ReadTimeout time.Duration           `help:"Give up when no frame arrives within this duration (0 disables)" default:"0s" env:"WIISTREAM_STREAM_READ_TIMEOUT"`
	DialTimeout time.Duration           `help:"Bridge connect timeout" default:"5s" env:"WIISTREAM_STREAM_DIAL_TIMEOUT"`
	Accel       bool                    `help:"Decode acceleration reports" default:"true" negatable:"" env:"WIISTREAM_STREAM_ACCEL"`
	IR          bool                    `name:"ir" help:"Decode infrared reports" default:"false" negatable:"" env:"WIISTREAM_STREAM_IR"`
	Sinks       Sinks                   `embed:"" prefix:"sink."`
}

// Run is called by Kong when the stream command is executed.
func (s *Stream) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartStream(ctx, logger, rawLogger)
}

func (s *Stream) open(ctx context.Context) (transport.Source, error) {
	opts := transport.Options{
		ReadTimeout: s.ReadTimeout,
		DialTimeout: s.DialTimeout,
		Password:    s.Password,
	}
	switch s.Transport {
	case "serial":
		if s.Serial.Port == "" {
			return nil, errors.New("--serial.port is required for the serial transport")
		}
		return transport.OpenSerial(s.Serial, opts)
	case "hid":
		return transport.OpenHID(s.HID, opts)
	default:
		if s.Addr == "" {
			return nil, errors.New("--addr is required for the tcp transport")
		}
		return transport.DialTCP(ctx, s.Addr, opts)
	}
}

// StartStream runs the session until the connection ends or ctx is done.
func (s *Stream) StartStream(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	sinks, err := s.Sinks.Open(logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	src, err := s.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted while connecting.
			return nil
		}
		return err
	}
	defer src.Close()

	id := uuid.NewString()
	ctrl := sink.NewController(id, wiimote.Features{Acceleration: s.Accel, Infrared: s.IR}, sinks.sinks...)
	st := wiimote.NewStreamer(src, ctrl,
		wiimote.WithSessionID(id),
		wiimote.WithLogger(logger),
		wiimote.WithRawLogger(rawLogger),
	)
	logger.Info("Starting wiimote stream", "session", id, "transport", s.Transport, "accel", s.Accel, "ir", s.IR)
	st.Start(ctx)

	select {
	case <-ctx.Done():
		st.RequestStop()
		// The loop may be blocked in a read; closing the source unblocks it.
		_ = src.Close()
		<-st.Done()
		return nil
	case err := <-sinks.Err():
		st.RequestStop()
		_ = src.Close()
		<-st.Done()
		return err
	case <-st.Done():
	}

	err = st.Wait()
	logger.Info("stream finished", "session", id, "frames", st.Frames())
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("stream: %w", err)
}
