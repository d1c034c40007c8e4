package sink

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func pressed(session string, id wiimote.ButtonID) apitypes.Event {
	return apitypes.NewEvent(session, fixedTime, wiimote.ButtonPressed{Button: id})
}

type collector struct {
	mu  sync.Mutex
	evs []apitypes.Event
}

func (c *collector) Handle(ev apitypes.Event) {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
}

func TestController(t *testing.T) {
	a, b := &collector{}, &collector{}
	c := NewController("s1", wiimote.Features{Acceleration: true}, a, b)
	c.now = func() time.Time { return fixedTime }

	assert.Equal(t, "s1", c.Session())
	assert.True(t, c.AccelerationEnabled())
	assert.False(t, c.InfraredEnabled())

	c.SetAcceleration(false)
	c.SetInfrared(true)
	assert.False(t, c.AccelerationEnabled())
	assert.True(t, c.InfraredEnabled())

	c.Fire(wiimote.ButtonPressed{Button: wiimote.ButtonHome})
	c.Fire(wiimote.ButtonReleased{})

	want := []apitypes.Event{
		{Session: "s1", Kind: wiimote.KindPressed, Time: fixedTime, Payload: apitypes.ButtonPressed{ID: 8, Name: "HOME"}},
		{Session: "s1", Kind: wiimote.KindReleased, Time: fixedTime},
	}
	assert.Equal(t, want, a.evs)
	assert.Equal(t, want, b.evs)
}

func TestConsoleSink(t *testing.T) {
	type testCase struct {
		name   string
		format string
		ev     apitypes.Event
		want   string
	}
	cases := []testCase{
		{
			name:   "json",
			format: FormatJSON,
			ev:     pressed("s1", wiimote.ButtonA),
			want:   `{"session":"s1","kind":"button_pressed","time":"2024-05-01T12:30:00Z","payload":{"id":4,"name":"A"}}` + "\n",
		},
		{
			name:   "auto on a buffer is json",
			format: FormatAuto,
			ev:     apitypes.NewEvent("s1", fixedTime, wiimote.ButtonReleased{}),
			want:   `{"session":"s1","kind":"button_released","time":"2024-05-01T12:30:00Z"}` + "\n",
		},
		{
			name:   "text button",
			format: FormatText,
			ev:     pressed("s1", wiimote.ButtonPlus),
			want:   "12:30:00.000 button_pressed  PLUS (13)\n",
		},
		{
			name:   "text uncalibrated acceleration",
			format: FormatText,
			ev:     apitypes.NewEvent("s1", fixedTime, wiimote.AccelerationSample{}),
			want:   "12:30:00.000 acceleration    x=+0.000 y=+0.000 z=+0.000 (uncalibrated)\n",
		},
		{
			name:   "text release",
			format: FormatText,
			ev:     apitypes.NewEvent("s1", fixedTime, wiimote.ButtonReleased{}),
			want:   "12:30:00.000 button_released\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewConsoleSink(&buf, tc.format).Handle(tc.ev)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewLogSink(logger)

	s.Handle(apitypes.NewEvent("s1", fixedTime, wiimote.AccelerationSample{}))
	assert.Empty(t, buf.String(), "acceleration logs at trace")

	s.Handle(pressed("s1", wiimote.ButtonB))
	assert.Contains(t, buf.String(), "kind=button_pressed")
	assert.Contains(t, buf.String(), "session=s1")
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newToken(nil)
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, MQTTOptions{TopicPrefix: "wiimote/", QoS: 1, Timeout: time.Second}, quiet)

	cal := apitypes.NewEvent("s1", fixedTime, wiimote.CalibrationUpdated{
		Calibration: wiimote.Calibration{X0: 1, Y0: 2, Z0: 3, X1: 4, Y1: 5, Z1: 6},
	})
	s.Handle(cal)
	s.Handle(pressed("s1", wiimote.ButtonUp))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "wiimote/s1/calibration", pub.msgs[0].topic)
	assert.True(t, pub.msgs[0].retained)
	assert.Equal(t, byte(1), pub.msgs[0].qos)
	assert.JSONEq(t,
		`{"session":"s1","kind":"calibration","time":"2024-05-01T12:30:00Z","payload":{"zero":[1,2,3],"one":[4,5,6]}}`,
		string(pub.msgs[0].payload))

	assert.Equal(t, "wiimote/s1/button_pressed", pub.msgs[1].topic)
	assert.False(t, pub.msgs[1].retained)

	noPrefix := newMQTTSink(pub, MQTTOptions{}, quiet)
	assert.Equal(t, "s2/button_pressed", noPrefix.Topic(pressed("s2", wiimote.ButtonUp)))
	require.NoError(t, s.Close())
}

func TestWebSocketHub(t *testing.T) {
	hub := NewWebSocketHub(quiet)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Handle(pressed("s1", wiimote.ButtonLeft))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)

	var got apitypes.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, wiimote.KindPressed, got.Kind)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Close())
}

func TestWebSocketHub_CloseBeforeServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	hub := NewWebSocketHub(quiet)
	require.NoError(t, hub.Close())

	done := make(chan error, 1)
	go func() { done <- hub.ListenAndServe(addr) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("closed hub kept serving")
	}

	_, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err)
	require.NoError(t, hub.Close())
}

func TestSQLiteRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	rec, err := OpenSQLite(path, quiet)
	require.NoError(t, err)

	rec.Handle(pressed("s1", wiimote.ButtonOne))
	rec.Handle(apitypes.NewEvent("s1", fixedTime, wiimote.ButtonReleased{}))
	rec.Handle(pressed("s2", wiimote.ButtonTwo))

	n, err := rec.Count("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = rec.Count("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var kind, payload string
	require.NoError(t, rec.db.QueryRow(
		`SELECT kind, payload FROM events WHERE session = ? ORDER BY id LIMIT 1`, "s2").Scan(&kind, &payload))
	assert.Equal(t, "button_pressed", kind)
	assert.JSONEq(t, `{"id":1,"name":"2"}`, payload)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	rec.Handle(pressed("s1", wiimote.ButtonOne))

	reopened, err := OpenSQLite(path, quiet)
	require.NoError(t, err)
	defer reopened.Close()
	n, err = reopened.Count("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
