package testing

import (
	"github.com/Alia5/wiistream/device/wiimote"
)

// Frame builds a raw frame with the given header and button bytes.
func Frame(header, a, b byte) []byte {
	f := make([]byte, wiimote.FrameSize)
	f[wiimote.OffsetTransport] = wiimote.TransportInput
	f[wiimote.OffsetHeader] = header
	f[wiimote.OffsetButtonsA] = a
	f[wiimote.OffsetButtonsB] = b
	return f
}

// CalibrationFrame builds a 0x21 frame carrying the given zero-g and one-g
// readings.
func CalibrationFrame(x0, y0, z0, x1, y1, z1 byte) []byte {
	f := Frame(wiimote.HeaderCalibration, 0, 0)
	f[7], f[8], f[9] = x0, y0, z0
	f[11], f[12], f[13] = x1, y1, z1
	return f
}

// AccelFrame builds a 0x31 frame with raw acceleration readings.
func AccelFrame(x, y, z byte) []byte {
	f := Frame(0x31, 0, 0)
	f[4], f[5], f[6] = x, y, z
	return f
}

// InfraredFrame builds a 0x33 frame where every slot holds (tx, ty, p).
func InfraredFrame(tx, ty, p byte) []byte {
	f := Frame(wiimote.HeaderInfrared, 0, 0)
	for i := 0; i < 4; i++ {
		o := wiimote.OffsetPayload + i*3
		f[o], f[o+1], f[o+2] = tx, ty, p
	}
	return f
}
