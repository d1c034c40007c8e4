package wiimote_test

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/wiistream/device/wiimote"
	th "github.com/Alia5/wiistream/internal/testing"
)

func frame(b []byte) *wiimote.Frame {
	var f wiimote.Frame
	copy(f[:], b)
	return &f
}

func TestClassify(t *testing.T) {
	all := wiimote.Features{Acceleration: true, Infrared: true}
	none := wiimote.Features{}

	type testCase struct {
		name   string
		header byte
		feat   wiimote.Features
		want   wiimote.Reports
	}
	cases := []testCase{
		{"calibration", 0x21, all, wiimote.ReportCalibration | wiimote.ReportButtons},
		{"buttons only report", 0x30, all, wiimote.ReportButtons},
		{"buttons+accel", 0x31, all, wiimote.ReportAcceleration | wiimote.ReportButtons},
		{"infrared overlaps accel", 0x33, all, wiimote.ReportAcceleration | wiimote.ReportInfrared | wiimote.ReportButtons},
		{"0x35 accel", 0x35, all, wiimote.ReportAcceleration | wiimote.ReportButtons},
		{"0x37 accel", 0x37, all, wiimote.ReportAcceleration | wiimote.ReportButtons},
		{"mask match on unlisted header", 0x3F, all, wiimote.ReportAcceleration | wiimote.ReportButtons},
		{"high bits match 0x31 mask", 0xF1, all, wiimote.ReportAcceleration | wiimote.ReportButtons},
		{"0x32 has no accel", 0x32, all, wiimote.ReportButtons},
		{"toggles off", 0x33, none, wiimote.ReportButtons},
		{"calibration ignores toggles", 0x21, none, wiimote.ReportCalibration | wiimote.ReportButtons},
		{"infrared only", 0x33, wiimote.Features{Infrared: true}, wiimote.ReportInfrared | wiimote.ReportButtons},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wiimote.Classify(tc.header, tc.feat)
			assert.Equal(t, tc.want, got, "got %s", got)
		})
	}
}

func TestDecodeCalibration(t *testing.T) {
	cal := wiimote.DecodeCalibration(frame(th.CalibrationFrame(10, 10, 10, 200, 200, 200)))
	assert.Equal(t, wiimote.Calibration{X0: 10, Y0: 10, Z0: 10, X1: 200, Y1: 200, Z1: 200}, cal)
	assert.Empty(t, cal.DegenerateAxes())
}

func TestDecodeAcceleration(t *testing.T) {
	cal := wiimote.Calibration{X0: 10, Y0: 10, Z0: 10, X1: 200, Y1: 200, Z1: 200}

	t.Run("normalized", func(t *testing.T) {
		acc, err := wiimote.DecodeAcceleration(frame(th.AccelFrame(110, 110, 110)), cal, true)
		require.NoError(t, err)
		assert.True(t, acc.Valid)
		assert.InDelta(t, 0.526, acc.X, 0.001)
		assert.InDelta(t, 0.526, acc.Y, 0.001)
		assert.InDelta(t, 0.526, acc.Z, 0.001)
	})

	t.Run("out of range is not an error", func(t *testing.T) {
		acc, err := wiimote.DecodeAcceleration(frame(th.AccelFrame(0, 255, 10)), cal, true)
		require.NoError(t, err)
		assert.Less(t, acc.X, 0.0)
		assert.Greater(t, acc.Y, 1.0)
		assert.Equal(t, 0.0, acc.Z)
	})

	t.Run("not calibrated", func(t *testing.T) {
		acc, err := wiimote.DecodeAcceleration(frame(th.AccelFrame(110, 110, 110)), wiimote.Calibration{}, false)
		assert.ErrorIs(t, err, wiimote.ErrNotCalibrated)
		assert.False(t, acc.Valid)
	})

	t.Run("degenerate axis", func(t *testing.T) {
		bad := cal
		bad.Y1 = bad.Y0
		acc, err := wiimote.DecodeAcceleration(frame(th.AccelFrame(110, 110, 110)), bad, true)
		assert.ErrorIs(t, err, wiimote.ErrDegenerateCalibration)
		assert.Contains(t, err.Error(), "axis y")
		assert.False(t, acc.Valid)
		assert.Equal(t, 0.0, acc.Y)
		assert.False(t, math.IsNaN(acc.Y) || math.IsInf(acc.Y, 0))
		assert.InDelta(t, 0.526, acc.X, 0.001)
	})
}

func TestDecodeInfrared(t *testing.T) {
	ir := wiimote.DecodeInfrared(frame(th.InfraredFrame(0x10, 0x20, 0x35)))
	for i, b := range ir {
		assert.Equal(t, uint16(0x310), b.X, "slot %d", i)
		assert.Equal(t, uint16(0x20), b.Y, "slot %d", i)
		assert.Equal(t, uint8(0x05), b.Size, "slot %d", i)
	}

	t.Run("empty slots are decoded as sent", func(t *testing.T) {
		ir := wiimote.DecodeInfrared(frame(th.InfraredFrame(0xFF, 0xFF, 0xFF)))
		for _, b := range ir {
			assert.Equal(t, wiimote.Blob{X: 1023, Y: 1023, Size: 15}, b)
		}
	})

	t.Run("slots are independent", func(t *testing.T) {
		raw := th.InfraredFrame(0, 0, 0)
		raw[7+3*2], raw[8+3*2], raw[9+3*2] = 0x01, 0x02, 0xC3
		ir := wiimote.DecodeInfrared(frame(raw))
		assert.Equal(t, wiimote.Blob{}, ir[0])
		assert.Equal(t, wiimote.Blob{X: 0x01, Y: 0x302, Size: 3}, ir[2])
	})
}

func TestDecodeButtons(t *testing.T) {
	idle := wiimote.Transition{}
	pressed := wiimote.Transition{Kind: wiimote.Pressed, Button: wiimote.ButtonA}
	released := wiimote.Transition{Kind: wiimote.Released}

	type testCase struct {
		name  string
		last  wiimote.Transition
		a, b  byte
		want  wiimote.Transition
		fired bool
	}
	cases := []testCase{
		{"b 0x01 -> 1", idle, 0, 0x01, wiimote.Transition{Kind: wiimote.Pressed, Button: 1}, true},
		{"priority 0x01 over 0x02", idle, 0, 0x03, wiimote.Transition{Kind: wiimote.Pressed, Button: 1}, true},
		{"b 0x80 -> home", released, 0, 0x80, wiimote.Transition{Kind: wiimote.Pressed, Button: wiimote.ButtonHome}, true},
		{"b before a", idle, 0x01, 0x10, wiimote.Transition{Kind: wiimote.Pressed, Button: wiimote.ButtonMinus}, true},
		{"a 0x01 -> 9", idle, 0x01, 0, wiimote.Transition{Kind: wiimote.Pressed, Button: 9}, true},
		{"a 0x10 -> 13", idle, 0x10, 0, wiimote.Transition{Kind: wiimote.Pressed, Button: 13}, true},
		{"b 0x20 is not a button", idle, 0, 0x20, idle, false},
		{"held press does not refire", pressed, 0, 0x02, pressed, false},
		{"release after press", pressed, 0x20, 0x20, released, true},
		{"release with 0x40 bits", pressed, 0x40, 0x60, released, true},
		{"release needs both bytes", pressed, 0x20, 0, pressed, false},
		{"release on idle", idle, 0x20, 0x40, released, true},
		{"no double release", released, 0x20, 0x20, released, false},
		{"press beats release", released, 0x20, 0x21, wiimote.Transition{Kind: wiimote.Pressed, Button: 1}, true},
		{"nothing", idle, 0, 0, idle, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, fired := wiimote.DecodeButtons(tc.last, tc.a, tc.b)
			assert.Equal(t, tc.fired, fired)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStateStep(t *testing.T) {
	feat := wiimote.Features{Acceleration: true, Infrared: true}

	t.Run("button idempotence", func(t *testing.T) {
		var st wiimote.State
		st, evs, _ := st.Step(frame(th.Frame(0x30, 0, 0x01)), feat)
		assert.Equal(t, []wiimote.Event{wiimote.ButtonPressed{Button: 1}}, evs)
		_, evs, _ = st.Step(frame(th.Frame(0x30, 0, 0x01)), feat)
		assert.Empty(t, evs)
	})

	t.Run("button release once", func(t *testing.T) {
		st := wiimote.State{Last: wiimote.Transition{Kind: wiimote.Pressed, Button: 4}}
		st, evs, _ := st.Step(frame(th.Frame(0x30, 0x20, 0x20)), feat)
		assert.Equal(t, []wiimote.Event{wiimote.ButtonReleased{}}, evs)
		_, evs, _ = st.Step(frame(th.Frame(0x30, 0x20, 0x20)), feat)
		assert.Empty(t, evs)
	})

	t.Run("calibration then acceleration", func(t *testing.T) {
		var st wiimote.State
		st, evs, err := st.Step(frame(th.CalibrationFrame(10, 10, 10, 200, 200, 200)), feat)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.True(t, st.Calibrated)
		assert.Equal(t, wiimote.KindCalibration, evs[0].Kind())

		_, evs, err = st.Step(frame(th.AccelFrame(110, 110, 110)), feat)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		s := evs[0].(wiimote.AccelerationSample)
		assert.True(t, s.Valid)
		assert.InDelta(t, 0.526, s.X, 0.001)
	})

	t.Run("acceleration before calibration is flagged", func(t *testing.T) {
		var st wiimote.State
		_, evs, err := st.Step(frame(th.AccelFrame(110, 110, 110)), feat)
		assert.ErrorIs(t, err, wiimote.ErrNotCalibrated)
		require.Len(t, evs, 1)
		assert.False(t, evs[0].(wiimote.AccelerationSample).Valid)
	})

	t.Run("order within frame", func(t *testing.T) {
		st := wiimote.State{Calibrated: true, Calibration: wiimote.Calibration{X1: 1, Y1: 1, Z1: 1}}
		raw := th.InfraredFrame(1, 2, 3)
		raw[wiimote.OffsetButtonsB] = 0x08
		_, evs, _ := st.Step(frame(raw), feat)
		kinds := make([]wiimote.EventKind, 0, len(evs))
		for _, ev := range evs {
			kinds = append(kinds, ev.Kind())
		}
		assert.Equal(t, []wiimote.EventKind{wiimote.KindAcceleration, wiimote.KindInfrared, wiimote.KindPressed}, kinds)
	})

	t.Run("calibration is kept across frames", func(t *testing.T) {
		st := wiimote.State{}
		st, _, _ = st.Step(frame(th.CalibrationFrame(1, 2, 3, 4, 5, 6)), feat)
		st, _, _ = st.Step(frame(th.Frame(0x30, 0, 0)), feat)
		assert.Equal(t, wiimote.Calibration{X0: 1, Y0: 2, Z0: 3, X1: 4, Y1: 5, Z1: 6}, st.Calibration)
	})
}

func TestReadFrame(t *testing.T) {
	t.Run("full frame", func(t *testing.T) {
		raw := th.Frame(0x31, 1, 2)
		f, err := wiimote.ReadFrame(&th.FrameReceiver{Frames: [][]byte{raw}})
		require.NoError(t, err)
		assert.Equal(t, raw, f[:])
		assert.Equal(t, byte(0x31), f.Header())
	})

	t.Run("short message", func(t *testing.T) {
		_, err := wiimote.ReadFrame(&th.FrameReceiver{Frames: [][]byte{{0xA1, 0x30, 0, 0}}})
		assert.ErrorIs(t, err, wiimote.ErrMalformedFrame)
	})

	t.Run("receive error", func(t *testing.T) {
		sentinel := errors.New("reset")
		_, err := wiimote.ReadFrame(&th.FrameReceiver{Err: sentinel})
		assert.ErrorIs(t, err, wiimote.ErrConnectionLost)
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("stream eof", func(t *testing.T) {
		_, err := wiimote.ReadFrame(wiimote.StreamReceiver(bytesReader(nil)))
		assert.ErrorIs(t, err, wiimote.ErrConnectionLost)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("stream truncated", func(t *testing.T) {
		_, err := wiimote.ReadFrame(wiimote.StreamReceiver(bytesReader(make([]byte, 7))))
		assert.ErrorIs(t, err, wiimote.ErrMalformedFrame)
	})

	t.Run("stream frames back to back", func(t *testing.T) {
		data := append(th.Frame(0x30, 0, 1), th.Frame(0x31, 0, 2)...)
		rx := wiimote.StreamReceiver(bytesReader(data))
		f1, err := wiimote.ReadFrame(rx)
		require.NoError(t, err)
		f2, err := wiimote.ReadFrame(rx)
		require.NoError(t, err)
		assert.Equal(t, byte(0x30), f1.Header())
		assert.Equal(t, byte(0x31), f2.Header())
	})
}

func TestRequiredLength(t *testing.T) {
	cases := map[byte]int{
		0x30: 4,
		0x31: 7,
		0x35: 7,
		0x21: 14,
		0x33: wiimote.FrameSize,
	}
	for header, want := range cases {
		assert.Equal(t, want, wiimote.RequiredLength(header), "header %#02x", header)
	}
}

func TestButtonIDString(t *testing.T) {
	assert.Equal(t, "HOME", wiimote.ButtonHome.String())
	assert.Equal(t, "2", wiimote.ButtonTwo.String())
	assert.Equal(t, "NONE", wiimote.ButtonID(6).String())
}
