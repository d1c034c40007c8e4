package transport

import (
	"fmt"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/Alia5/wiistream/device/wiimote"
)

// SerialOptions configure a tty carrying the raw frame stream, such as an
// RFCOMM device or a microcontroller bridge.
type SerialOptions struct {
	Port     string `name:"port" help:"Serial device carrying raw frames" env:"WIISTREAM_SERIAL_PORT"`
	BaudRate uint   `name:"baud" help:"Serial baud rate" default:"115200" env:"WIISTREAM_SERIAL_BAUD"`
}

// OpenSerial opens a tty and reads the frame stream from it.
func OpenSerial(so SerialOptions, opts Options) (Source, error) {
	oo := serial.OpenOptions{
		PortName:        so.Port,
		BaudRate:        so.BaudRate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	if opts.ReadTimeout > 0 {
		// go-serial only offers an inter-character timeout in 100ms steps
		// (VTIME); an expired read surfaces as EOF.
		oo.MinimumReadSize = 0
		oo.InterCharacterTimeout = interCharTimeout(opts.ReadTimeout)
	}
	port, err := serial.Open(oo)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", so.Port, err)
	}
	return &streamSource{rx: wiimote.StreamReceiver(port), c: port}, nil
}

type streamSource struct {
	rx wiimote.Receiver
	c  interface{ Close() error }
}

func (s *streamSource) Receive(buf []byte) (int, error) { return s.rx.Receive(buf) }
func (s *streamSource) Close() error                    { return s.c.Close() }

func interCharTimeout(d time.Duration) uint {
	ms := (d.Milliseconds() + 99) / 100 * 100
	if ms > 25500 {
		ms = 25500
	}
	return uint(ms)
}
