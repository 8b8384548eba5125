// Package gpiote is the board's pin-change interrupt driver. Output pins are
// plain level-holding outputs; input pins carry a pull and an edge sense and
// dispatch a registered handler through the GPIOTE interrupt line when an
// enabled edge is detected. In simulation the electrical world is driven
// through SetPinLevel.
package gpiote

import (
	"fmt"
	"sync"

	"github.com/ravasco/go-devboard/internal/eventhub"
	"github.com/ravasco/go-devboard/pkg/errors"
	"github.com/ravasco/go-devboard/pkg/irq"
	"github.com/ravasco/go-devboard/pkg/logs"
	"github.com/ravasco/go-devboard/pkg/pin"
	log "github.com/sirupsen/logrus"
)

const gpioteCaller = "GPIOTEDriver"

// EventHandler is invoked in GPIOTE interrupt context when an enabled input
// pin sees a transition matching its sense configuration.
type EventHandler func(p pin.Pin, polarity pin.Polarity)

type OutConfig struct {
	InitialLevel pin.Level
}

type InConfig struct {
	Pull  pin.Pull
	Sense pin.Sense
}

type outPin struct {
	level pin.Level
}

type inPin struct {
	cfg     InConfig
	handler EventHandler
	enabled bool
	level   pin.Level
}

type Driver struct {
	mu          sync.Mutex
	initialized bool
	ctrl        *irq.Controller
	hub         *eventhub.Hub
	outs        map[pin.Pin]*outPin
	ins         map[pin.Pin]*inPin
	logger      *log.Logger
}

func New(ctrl *irq.Controller, hub *eventhub.Hub) *Driver {
	return &Driver{
		ctrl:   ctrl,
		hub:    hub,
		outs:   map[pin.Pin]*outPin{},
		ins:    map[pin.Pin]*inPin{},
		logger: logs.NewLogger(gpioteCaller),
	}
}

func (d *Driver) Init() errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return errors.FatalError(409, "GPIOTE driver already initialized", gpioteCaller)
	}
	d.initialized = true
	return nil
}

// OutInit configures a pin as an output driven at the given initial level.
func (d *Driver) OutInit(p pin.Pin, cfg OutConfig) errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.assertFreePin(p); err != nil {
		return err
	}
	d.outs[p] = &outPin{level: cfg.InitialLevel}
	return nil
}

// InInit configures a pin as an input with the given pull and edge sense and
// binds its event handler. Event delivery stays disabled until InEventEnable.
func (d *Driver) InInit(p pin.Pin, cfg InConfig, handler EventHandler) errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.assertFreePin(p); err != nil {
		return err
	}
	if handler == nil {
		return errors.FatalError(400, fmt.Sprintf("nil event handler for pin %d", p), gpioteCaller)
	}
	level := pin.Low
	if cfg.Pull == pin.PullUp {
		level = pin.High
	}
	d.ins[p] = &inPin{cfg: cfg, handler: handler, level: level}
	return nil
}

func (d *Driver) InEventEnable(p pin.Pin) errors.Error {
	return d.setEventEnabled(p, true)
}

func (d *Driver) InEventDisable(p pin.Pin) errors.Error {
	return d.setEventEnabled(p, false)
}

func (d *Driver) OutSet(p pin.Pin) {
	d.driveOut(p, pin.High)
}

func (d *Driver) OutClear(p pin.Pin) {
	d.driveOut(p, pin.Low)
}

// OutToggle flips the level of an output pin.
func (d *Driver) OutToggle(p pin.Pin) {
	d.mu.Lock()
	out := d.mustOut(p)
	out.level = out.level.Toggled()
	level := out.level
	d.mu.Unlock()
	d.hub.Publish(eventhub.Event{Topic: eventhub.TopicLED, Pin: p, Level: level})
}

// OutLevel returns the level currently driven on an output pin.
func (d *Driver) OutLevel(p pin.Pin) (pin.Level, errors.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, ok := d.outs[p]
	if !ok {
		return pin.Low, errors.FatalError(404, fmt.Sprintf("pin %d is not configured as output", p), gpioteCaller)
	}
	return out.level, nil
}

// SetPinLevel drives the simulated electrical level of an input pin. A
// transition matching the pin's sense, with events enabled, pends the GPIOTE
// interrupt to run the registered handler.
func (d *Driver) SetPinLevel(p pin.Pin, level pin.Level) {
	d.mu.Lock()
	in, ok := d.ins[p]
	if !ok {
		d.mu.Unlock()
		d.logger.Warnf("level change on unconfigured pin %d ignored", p)
		return
	}
	prev := in.level
	in.level = level
	enabled := in.enabled
	handler := in.handler
	sense := in.cfg.Sense
	d.mu.Unlock()

	if prev == level {
		return
	}
	polarity := pin.PolarityLoToHi
	if prev == pin.High {
		polarity = pin.PolarityHiToLo
	}
	d.hub.Publish(eventhub.Event{Topic: eventhub.TopicButton, Pin: p, Level: level})
	if !enabled || !sense.Matches(polarity) {
		return
	}
	d.ctrl.Pend(irq.GPIOTE, func() {
		handler(p, polarity)
	})
}

func (d *Driver) assertFreePin(p pin.Pin) errors.Error {
	if !d.initialized {
		return errors.FatalError(400, "GPIOTE driver not initialized", gpioteCaller)
	}
	if _, ok := d.outs[p]; ok {
		return errors.FatalError(409, fmt.Sprintf("pin %d already configured", p), gpioteCaller)
	}
	if _, ok := d.ins[p]; ok {
		return errors.FatalError(409, fmt.Sprintf("pin %d already configured", p), gpioteCaller)
	}
	return nil
}

func (d *Driver) setEventEnabled(p pin.Pin, enabled bool) errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	in, ok := d.ins[p]
	if !ok {
		return errors.FatalError(404, fmt.Sprintf("pin %d is not configured as input", p), gpioteCaller)
	}
	in.enabled = enabled
	return nil
}

func (d *Driver) driveOut(p pin.Pin, level pin.Level) {
	d.mu.Lock()
	out := d.mustOut(p)
	changed := out.level != level
	out.level = level
	d.mu.Unlock()
	if changed {
		d.hub.Publish(eventhub.Event{Topic: eventhub.TopicLED, Pin: p, Level: level})
	}
}

// mustOut is called with d.mu held. Driving a pin that was never configured
// as an output is a programming error, mirroring a hard fault on real silicon.
func (d *Driver) mustOut(p pin.Pin) *outPin {
	out, ok := d.outs[p]
	if !ok {
		d.logger.Panicf("pin %d driven but not configured as output", p)
	}
	return out
}
