package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
)

// MQTTOptions configure the MQTT publisher.
type MQTTOptions struct {
	Broker   string
	ClientID string
	// TopicPrefix is prepended to "<session>/<kind>".
	TopicPrefix string
	QoS         byte
	// Timeout bounds connect and each publish.
	Timeout time.Duration
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes every event as JSON to
// <prefix>/<session>/<kind>. Calibration events are retained so late
// subscribers see the current calibration.
type MQTTSink struct {
	client  publisher
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
	close   func()
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(o MQTTOptions, logger *slog.Logger) (*MQTTSink, error) {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetConnectTimeout(o.Timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.Broker, err)
	}
	logger.Info("connected to MQTT broker", "broker", o.Broker, "prefix", o.TopicPrefix)

	s := newMQTTSink(client, o, logger)
	s.close = func() { client.Disconnect(250) }
	return s, nil
}

func newMQTTSink(p publisher, o MQTTOptions, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{
		client:  p,
		prefix:  strings.TrimSuffix(o.TopicPrefix, "/"),
		qos:     o.QoS,
		timeout: o.Timeout,
		logger:  logger,
	}
}

// Topic returns the topic an event is published on.
func (m *MQTTSink) Topic(ev apitypes.Event) string {
	if m.prefix == "" {
		return ev.Session + "/" + string(ev.Kind)
	}
	return m.prefix + "/" + ev.Session + "/" + string(ev.Kind)
}

func (m *MQTTSink) Handle(ev apitypes.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("mqtt: marshal event", "kind", ev.Kind, "error", err)
		return
	}
	retained := ev.Kind == wiimote.KindCalibration
	token := m.client.Publish(m.Topic(ev), m.qos, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		m.logger.Warn("mqtt: publish timeout", "topic", m.Topic(ev))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Error("mqtt: publish", "topic", m.Topic(ev), "error", err)
	}
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}
