package wiimote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Alia5/wiistream/internal/log"
)

// Streamer runs one decode session: read a frame, classify, decode, fire,
// repeat. All session state is owned by the streamer's goroutine.
type Streamer struct {
	rx     Receiver
	dev    Device
	id     string
	logger *slog.Logger
	raw    log.RawLogger

	running atomic.Bool
	stop    atomic.Bool
	started atomic.Bool
	done    chan struct{}
	err     error
	frames  atomic.Uint64
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithLogger sets the logger; a "session" attribute is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) { s.logger = l }
}

// WithRawLogger dumps every received frame.
func WithRawLogger(r log.RawLogger) Option {
	return func(s *Streamer) { s.raw = r }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Streamer) { s.id = id }
}

// NewStreamer creates a stopped streamer reading from rx and firing into dev.
func NewStreamer(rx Receiver, dev Device, opts ...Option) *Streamer {
	s := &Streamer{
		rx:     rx,
		dev:    dev,
		logger: slog.Default(),
		raw:    log.NewRaw(nil),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session id.
func (s *Streamer) ID() string { return s.id }

// Frames returns the number of frames decoded so far.
func (s *Streamer) Frames() uint64 { return s.frames.Load() }

// Start launches the session on its own goroutine. Calling Start more than
// once has no effect.
func (s *Streamer) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.running.Store(true)
	go s.loop(ctx)
}

// Run starts the session and blocks until it terminates.
func (s *Streamer) Run(ctx context.Context) error {
	s.Start(ctx)
	return s.Wait()
}

// RequestStop asks the session to stop at the next frame boundary. A read
// in progress is not interrupted; close the underlying connection to
// unblock it.
func (s *Streamer) RequestStop() { s.stop.Store(true) }

// IsRunning reports whether the session loop is active.
func (s *Streamer) IsRunning() bool { return s.running.Load() }

// Done is closed when the session terminated.
func (s *Streamer) Done() <-chan struct{} { return s.done }

// Wait blocks until the session terminated. It returns nil after a
// cooperative stop and the terminal error otherwise. Wait on a streamer
// that was never started returns immediately with nil.
func (s *Streamer) Wait() error {
	if !s.started.Load() {
		return nil
	}
	<-s.done
	return s.err
}

func (s *Streamer) stopRequested(ctx context.Context) bool {
	if s.stop.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Streamer) loop(ctx context.Context) {
	defer close(s.done)
	defer s.running.Store(false)

	s.logger.Info("streamer started")
	var st State
	for !s.stopRequested(ctx) {
		f, err := ReadFrame(s.rx)
		if err != nil {
			s.err = err
			switch {
			case errors.Is(err, ErrMalformedFrame):
				s.logger.Error("streamer: malformed frame", "error", err)
			case errors.Is(err, io.EOF):
				s.logger.Info("streamer: connection to wiimote closed")
			default:
				s.logger.Error("streamer: connection to wiimote lost", "error", err)
			}
			return
		}
		s.frames.Add(1)
		s.raw.Log(s.id, f[:])

		feat := Features{
			Acceleration: s.dev.AccelerationEnabled(),
			Infrared:     s.dev.InfraredEnabled(),
		}
		var events []Event
		st, events, err = st.Step(&f, feat)
		if err != nil {
			s.logger.Debug("acceleration sample not normalized", "error", err)
		}
		for _, ev := range events {
			if c, ok := ev.(CalibrationUpdated); ok {
				s.logger.Info("autocalibration successful", "calibration", c.Calibration.String())
			}
			s.dev.Fire(ev)
		}
	}
	s.logger.Info("streamer stopped")
}
