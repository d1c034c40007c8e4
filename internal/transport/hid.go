package transport

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
)

// Default Wii Remote USB ids as exposed by the Bluetooth HID stack.
const (
	DefaultVendorID  apitypes.HexUint16 = 0x057e
	DefaultProductID apitypes.HexUint16 = 0x0306
)

// maxReportSize is the largest Wii Remote input report including its id.
const maxReportSize = 22

// HIDOptions select the hidraw device.
type HIDOptions struct {
	VendorID  apitypes.HexUint16 `name:"vid" help:"HID vendor id" default:"0x057e" env:"WIISTREAM_HID_VID"`
	ProductID apitypes.HexUint16 `name:"pid" help:"HID product id" default:"0x0306" env:"WIISTREAM_HID_PID"`
	// Path opens a specific device node instead of the first vid:pid match.
	Path string `help:"hidraw device path, overrides vid/pid" env:"WIISTREAM_HID_PATH"`
}

type reportReader interface {
	Read(p []byte) (int, error)
	Close() error
}

type timeoutReader interface {
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
}

// hidSource turns HID input reports into frames. The HID stack strips the
// L2CAP transport byte, so it is put back at offset 0. Reports that are short
// by design (0x30 carries buttons only) are zero filled and longer ones
// truncated. A report that ends before the bytes its id promises yields a
// short count so the frame is rejected as malformed.
type hidSource struct {
	dev     reportReader
	timeout time.Duration
	report  [maxReportSize]byte
	exit    func() error

	closeOnce sync.Once
	closeErr  error
}

// NewHIDSource wraps an opened report reader. Exposed for tests and for
// callers managing the hidapi lifecycle themselves.
func NewHIDSource(dev reportReader, readTimeout time.Duration) Source {
	return &hidSource{dev: dev, timeout: readTimeout}
}

// OpenHID opens the controller through hidapi.
func OpenHID(ho HIDOptions, opts Options) (Source, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}
	var (
		dev *hid.Device
		err error
	)
	if ho.Path != "" {
		dev, err = hid.OpenPath(ho.Path)
	} else {
		dev, err = hid.OpenFirst(uint16(ho.VendorID), uint16(ho.ProductID))
	}
	if err != nil {
		_ = hid.Exit()
		return nil, fmt.Errorf("open hid %s:%s: %w", ho.VendorID, ho.ProductID, err)
	}
	if info, err := dev.GetDeviceInfo(); err == nil {
		slog.Info("opened hid device",
			"path", info.Path,
			"vid", fmt.Sprintf("%04x", info.VendorID),
			"pid", fmt.Sprintf("%04x", info.ProductID),
			"product", info.ProductStr)
	}
	return &hidSource{dev: dev, timeout: opts.ReadTimeout, exit: hid.Exit}, nil
}

func (h *hidSource) Receive(buf []byte) (int, error) {
	var (
		n   int
		err error
	)
	if tr, ok := h.dev.(timeoutReader); ok && h.timeout > 0 {
		n, err = tr.ReadWithTimeout(h.report[:], h.timeout)
	} else {
		n, err = h.dev.Read(h.report[:])
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.ErrNoProgress
	}

	clear(buf)
	buf[0] = wiimote.TransportInput
	copy(buf[1:], h.report[:n])
	if got := n + 1; got < wiimote.RequiredLength(h.report[0]) {
		return got, nil
	}
	return len(buf), nil
}

// Close releases the device and hidapi. Safe to call more than once.
func (h *hidSource) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.dev.Close()
		if h.exit != nil {
			if xerr := h.exit(); h.closeErr == nil {
				h.closeErr = xerr
			}
		}
	})
	return h.closeErr
}
