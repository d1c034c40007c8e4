package wiimote

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrConnectionLost is returned when the receiver fails. It is terminal
	// for the session.
	ErrConnectionLost = errors.New("connection to wiimote lost")
	// ErrMalformedFrame is returned when fewer than FrameSize bytes arrive
	// for a frame.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Frame is one raw input report.
type Frame [FrameSize]byte

// Header returns the report header byte.
func (f *Frame) Header() byte { return f[OffsetHeader] }

// Receiver delivers one message per call into buf and reports how many bytes
// were written.
type Receiver interface {
	Receive(buf []byte) (int, error)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(buf []byte) (int, error)

func (f ReceiverFunc) Receive(buf []byte) (int, error) { return f(buf) }

type streamReceiver struct {
	r io.Reader
}

// StreamReceiver adapts a byte stream (TCP, tty) to Receiver. Each Receive
// blocks until len(buf) bytes arrived. A stream that ends part way through a
// frame yields a short count instead of an error so the caller sees a
// malformed frame rather than a lost connection.
func StreamReceiver(r io.Reader) Receiver {
	return &streamReceiver{r: r}
}

func (s *streamReceiver) Receive(buf []byte) (int, error) {
	n, err := io.ReadFull(s.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}

// ReadFrame blocks until one full frame was received.
func ReadFrame(rx Receiver) (Frame, error) {
	var f Frame
	n, err := rx.Receive(f[:])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	if n < FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedFrame, n, FrameSize)
	}
	return f, nil
}

// RequiredLength returns how many leading frame bytes the decoders read for
// a frame with the given header, transport byte included. Transports that
// deliver variable length reports use it to reject truncated ones.
func RequiredLength(header byte) int {
	switch {
	case header == HeaderInfrared:
		return FrameSize
	case header == HeaderCalibration:
		// Calibration block ends with the z one-g reading at offset 13.
		return 14
	case hasAcceleration(header):
		return OffsetPayload
	default:
		return OffsetAccel
	}
}
