package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/wiistream/internal/sink"
)

// Sinks selects where decoded events go. Shared by stream and serve.
type Sinks struct {
	Console    string        `help:"Console output: auto, text, json or off" enum:"auto,text,json,off" default:"auto" env:"WIISTREAM_SINK_CONSOLE"`
	Log        bool          `help:"Also write events through the application logger" default:"false" env:"WIISTREAM_SINK_LOG"`
	MQTTBroker string        `name:"mqtt-broker" help:"Publish events to this MQTT broker (e.g. tcp://localhost:1883)" env:"WIISTREAM_SINK_MQTT_BROKER"`
	MQTTTopic  string        `name:"mqtt-topic" help:"MQTT topic prefix" default:"wiistream" env:"WIISTREAM_SINK_MQTT_TOPIC"`
	MQTTQoS    uint8         `name:"mqtt-qos" help:"MQTT quality of service (0-2)" default:"0" env:"WIISTREAM_SINK_MQTT_QOS"`
	MQTTWait   time.Duration `name:"mqtt-timeout" help:"MQTT connect and publish timeout" default:"5s" env:"WIISTREAM_SINK_MQTT_TIMEOUT"`
	WSAddr     string        `name:"ws-addr" help:"Serve a WebSocket event monitor at ws://<addr>/events" env:"WIISTREAM_SINK_WS_ADDR"`
	SQLite     string        `name:"sqlite" help:"Record events into this sqlite database" type:"path" env:"WIISTREAM_SINK_SQLITE"`
}

// SinkSet owns the sinks of one command run.
type SinkSet struct {
	sinks   []sink.Sink
	closers []io.Closer
	errCh   chan error
}

// Open creates every configured sink. On error the ones already opened are
// closed again.
func (s *Sinks) Open(logger *slog.Logger) (*SinkSet, error) {
	o := &SinkSet{errCh: make(chan error, 1)}

	if s.Console != "off" {
		o.sinks = append(o.sinks, sink.NewConsoleSink(os.Stdout, s.Console))
	}
	if s.Log {
		o.sinks = append(o.sinks, sink.NewLogSink(logger))
	}
	if s.MQTTQoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", s.MQTTQoS)
	}
	if s.MQTTBroker != "" {
		m, err := sink.NewMQTTSink(sink.MQTTOptions{
			Broker:      s.MQTTBroker,
			ClientID:    "wiistream-" + uuid.NewString()[:8],
			TopicPrefix: s.MQTTTopic,
			QoS:         s.MQTTQoS,
			Timeout:     s.MQTTWait,
		}, logger)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.add(m, m)
	}
	if s.SQLite != "" {
		r, err := sink.OpenSQLite(s.SQLite, logger)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.add(r, r)
	}
	if s.WSAddr != "" {
		hub := sink.NewWebSocketHub(logger)
		go func() {
			if err := hub.ListenAndServe(s.WSAddr); err != nil {
				o.errCh <- fmt.Errorf("websocket monitor: %w", err)
			}
		}()
		o.add(hub, hub)
	}
	return o, nil
}

func (o *SinkSet) add(s sink.Sink, c io.Closer) {
	o.sinks = append(o.sinks, s)
	o.closers = append(o.closers, c)
}

// Err reports a sink that failed after it was opened.
func (o *SinkSet) Err() <-chan error { return o.errCh }

// Close closes all sinks in reverse order.
func (o *SinkSet) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		_ = o.closers[i].Close()
	}
	o.closers = nil
}
