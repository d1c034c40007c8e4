// Package sink implements the wiimote device collaborator used by the CLI:
// it owns the report toggles and forwards every decoded event to a set of
// outputs.
package sink

import (
	"sync/atomic"
	"time"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
)

// Sink receives decoded events. Handle is called from session goroutines;
// sinks shared between sessions must be safe for concurrent use.
type Sink interface {
	Handle(ev apitypes.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev apitypes.Event)

func (f SinkFunc) Handle(ev apitypes.Event) { f(ev) }

// Controller is a wiimote.Device for one session.
type Controller struct {
	session string
	accel   atomic.Bool
	ir      atomic.Bool
	sinks   []Sink
	now     func() time.Time
}

// NewController creates a controller for session with the given toggles.
func NewController(session string, feat wiimote.Features, sinks ...Sink) *Controller {
	c := &Controller{session: session, sinks: sinks, now: time.Now}
	c.accel.Store(feat.Acceleration)
	c.ir.Store(feat.Infrared)
	return c
}

// Session returns the session id events are tagged with.
func (c *Controller) Session() string { return c.session }

func (c *Controller) AccelerationEnabled() bool { return c.accel.Load() }
func (c *Controller) InfraredEnabled() bool     { return c.ir.Load() }

// SetAcceleration toggles acceleration decoding from the next frame on.
func (c *Controller) SetAcceleration(on bool) { c.accel.Store(on) }

// SetInfrared toggles infrared decoding from the next frame on.
func (c *Controller) SetInfrared(on bool) { c.ir.Store(on) }

// Fire wraps ev in its wire envelope and hands it to every sink in order.
func (c *Controller) Fire(ev wiimote.Event) {
	out := apitypes.NewEvent(c.session, c.now(), ev)
	for _, s := range c.sinks {
		s.Handle(out)
	}
}
