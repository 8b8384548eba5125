// Package clock is the board's clock driver. The app timer service runs off
// the low-frequency clock, which a user must request once after Init; the
// request is non-blocking and the oscillator is considered stable immediately
// in simulation.
package clock

import (
	"sync"

	"github.com/ravasco/go-devboard/internal/eventhub"
	"github.com/ravasco/go-devboard/pkg/errors"
	"github.com/ravasco/go-devboard/pkg/logs"
	log "github.com/sirupsen/logrus"
)

const clockCaller = "ClockDriver"

type Driver struct {
	mu           sync.Mutex
	initialized  bool
	lfclkRunning bool
	hub          *eventhub.Hub
	logger       *log.Logger
}

func New(hub *eventhub.Hub) *Driver {
	return &Driver{
		hub:    hub,
		logger: logs.NewLogger(clockCaller),
	}
}

func (d *Driver) Init() errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return errors.FatalError(409, "clock driver already initialized", clockCaller)
	}
	d.initialized = true
	return nil
}

// LFCLKRequest requests the low-frequency clock source. The request does not
// block; LFCLKIsRunning reports when the source is available.
func (d *Driver) LFCLKRequest() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		d.logger.Panicf("LFCLK requested before clock driver init")
	}
	if d.lfclkRunning {
		return
	}
	d.lfclkRunning = true
	d.logger.Debug("LFCLK started")
	d.hub.Publish(eventhub.Event{Topic: eventhub.TopicLFCLK, Running: true})
}

func (d *Driver) LFCLKIsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lfclkRunning
}
