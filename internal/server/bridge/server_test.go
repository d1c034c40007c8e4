package bridge_test

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/log"
	"github.com/Alia5/wiistream/internal/server/auth"
	"github.com/Alia5/wiistream/internal/server/bridge"
	th "github.com/Alia5/wiistream/internal/testing"
)

type devices struct {
	mu   sync.Mutex
	byID map[string]*th.RecordingDevice
	ids  chan string
}

func newDevices() *devices {
	return &devices{byID: map[string]*th.RecordingDevice{}, ids: make(chan string, 8)}
}

func (d *devices) factory(session string, _ net.Addr) wiimote.Device {
	dev := th.NewRecordingDevice(true, true)
	d.mu.Lock()
	d.byID[session] = dev
	d.mu.Unlock()
	d.ids <- session
	return dev
}

func (d *devices) next(t *testing.T) (string, *th.RecordingDevice) {
	t.Helper()
	select {
	case id := <-d.ids:
		d.mu.Lock()
		defer d.mu.Unlock()
		return id, d.byID[id]
	case <-time.After(2 * time.Second):
		t.Fatal("no session opened")
		return "", nil
	}
}

func startServer(t *testing.T, cfg bridge.Config, d *devices) *bridge.Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	srv, err := bridge.New(cfg, d.factory, slog.New(slog.NewTextHandler(io.Discard, nil)), log.NewRaw(nil))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Close)
	return srv
}

func TestBridge_DecodesFrames(t *testing.T) {
	d := newDevices()
	srv := startServer(t, bridge.Config{}, d)

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	for _, f := range [][]byte{
		th.CalibrationFrame(10, 10, 10, 200, 200, 200),
		th.Frame(0x30, 0x10, 0x00),
		th.Frame(0x30, 0x20, 0x20),
	} {
		_, err := c.Write(f)
		require.NoError(t, err)
	}

	id, dev := d.next(t)
	evs := dev.WaitEvents(t, 3, 2*time.Second)
	assert.Equal(t, wiimote.KindCalibration, evs[0].Kind())
	assert.Equal(t, wiimote.ButtonPressed{Button: wiimote.ButtonPlus}, evs[1])
	assert.Equal(t, wiimote.ButtonReleased{}, evs[2])

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, uint64(3), sessions[0].Frames)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return len(srv.Sessions()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_ConcurrentSessions(t *testing.T) {
	d := newDevices()
	srv := startServer(t, bridge.Config{}, d)

	a, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer a.Close()
	b, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Write(th.Frame(0x30, 0x00, 0x08))
	require.NoError(t, err)
	_, _ = d.next(t)
	_, err = b.Write(th.Frame(0x30, 0x00, 0x04))
	require.NoError(t, err)
	_, _ = d.next(t)

	require.Eventually(t, func() bool { return len(srv.Sessions()) == 2 }, 2*time.Second, 10*time.Millisecond)
	sessions := srv.Sessions()
	assert.NotEqual(t, sessions[0].ID, sessions[1].ID)

	srv.Close()
	assert.Empty(t, srv.Sessions())
}

func TestBridge_Authenticated(t *testing.T) {
	d := newDevices()
	srv := startServer(t, bridge.Config{Password: "hunter2", HandshakeTimeout: time.Second}, d)

	raw, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer raw.Close()
	key, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)
	c, err := auth.Connect(raw, key)
	require.NoError(t, err)

	_, err = c.Write(th.Frame(0x30, 0x00, 0x02))
	require.NoError(t, err)

	_, dev := d.next(t)
	evs := dev.WaitEvents(t, 1, 2*time.Second)
	assert.Equal(t, wiimote.ButtonPressed{Button: wiimote.ButtonOne}, evs[0])
}

func TestBridge_RejectsWrongPassword(t *testing.T) {
	d := newDevices()
	srv := startServer(t, bridge.Config{Password: "hunter2", HandshakeTimeout: time.Second}, d)

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	key, err := auth.DeriveKey("wrong")
	require.NoError(t, err)
	_, err = c.Write(auth.ClientHello(key, make([]byte, auth.NonceSize)))
	require.NoError(t, err)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(c).ReadBytes('\n')
	require.NoError(t, err)
	var apiErr apitypes.ApiError
	require.NoError(t, json.Unmarshal(line, &apiErr))
	assert.Equal(t, 401, apiErr.Status)

	select {
	case <-d.ids:
		t.Fatal("session must not open without a valid handshake")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, srv.Sessions())
}
