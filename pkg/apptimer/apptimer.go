// Package apptimer is the board's application timer service. Timers are
// created once against the service and live for the whole process; starting
// arms a fresh schedule, stopping disarms it, and each expiry runs the bound
// handler in RTC1 interrupt context. The service runs off the low-frequency
// clock and refuses to initialize without it.
package apptimer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ravasco/go-devboard/internal/eventhub"
	timedEventQueue "github.com/ravasco/go-devboard/pkg/dataStructures/timedEventQueue"
	"github.com/ravasco/go-devboard/pkg/drivers/clock"
	"github.com/ravasco/go-devboard/pkg/errors"
	"github.com/ravasco/go-devboard/pkg/irq"
	"github.com/ravasco/go-devboard/pkg/logs"
	log "github.com/sirupsen/logrus"
)

const appTimerCaller = "AppTimer"

type Mode uint8

const (
	ModeSingleShot Mode = iota
	ModeRepeated
)

// Handler runs on each timer expiry, in RTC1 interrupt context.
type Handler func()

type Service struct {
	mu          sync.Mutex
	initialized bool
	ctrl        *irq.Controller
	clk         *clock.Driver
	hub         *eventhub.Hub
	teq         timedEventQueue.TimedEventQueue
	logger      *log.Logger
	nextID      uint64
}

func New(ctrl *irq.Controller, clk *clock.Driver, hub *eventhub.Hub) *Service {
	logger := logs.NewLogger(appTimerCaller)
	return &Service{
		ctrl:   ctrl,
		clk:    clk,
		hub:    hub,
		teq:    timedEventQueue.NewTimedEventQueue(logger),
		logger: logger,
	}
}

func (s *Service) Init() errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return errors.FatalError(409, "app timer service already initialized", appTimerCaller)
	}
	if !s.clk.LFCLKIsRunning() {
		return errors.FatalError(500, "low-frequency clock not running", appTimerCaller)
	}
	s.initialized = true
	return nil
}

// Create registers a new timer bound to the given handler. The timer is not
// started. The returned handle is valid for the process lifetime.
func (s *Service) Create(mode Mode, handler Handler) (*Timer, errors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, errors.FatalError(400, "app timer service not initialized", appTimerCaller)
	}
	if handler == nil {
		return nil, errors.FatalError(400, "nil timer handler", appTimerCaller)
	}
	id := atomic.AddUint64(&s.nextID, 1)
	return &Timer{svc: s, id: id, mode: mode, handler: handler}, nil
}

// Timer is an opaque handle to one registered timer. The handle is shared by
// reference; start/stop are safe against concurrent expiries.
type Timer struct {
	svc     *Service
	id      uint64
	mode    Mode
	handler Handler

	mu      sync.Mutex
	running bool
	period  time.Duration
	gen     uint64
}

// Start arms the timer with a fresh schedule: the first expiry happens one
// full period from now. Starting a running timer is reported as a temporary
// error and leaves the schedule untouched.
func (t *Timer) Start(period time.Duration) errors.Error {
	if period <= 0 {
		return errors.FatalError(400, fmt.Sprintf("invalid timer period %s", period), appTimerCaller)
	}
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return errors.TemporaryError(409, "timer already started", appTimerCaller)
	}
	t.running = true
	t.period = period
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.svc.teq.Add(&scheduledTick{t: t, gen: gen}, time.Now().Add(period))
	t.svc.hub.Publish(eventhub.Event{Topic: eventhub.TopicTimer, Running: true})
	return nil
}

// Stop disarms the timer. Stopping a stopped timer is reported as a temporary
// error.
func (t *Timer) Stop() errors.Error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return errors.TemporaryError(409, "timer already stopped", appTimerCaller)
	}
	t.running = false
	t.gen++
	t.mu.Unlock()

	// Best effort: an expiry already in flight dies on the generation check.
	t.svc.teq.Remove(t.key())
	t.svc.hub.Publish(eventhub.Event{Topic: eventhub.TopicTimer, Running: false})
	return nil
}

func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) key() string {
	return fmt.Sprintf("%d", t.id)
}

// scheduledTick is one armed schedule of a timer. The generation ties it to
// the Start call that created it, so a stale schedule surviving a stop/start
// cycle in the event queue never fires.
type scheduledTick struct {
	t   *Timer
	gen uint64
}

func (st *scheduledTick) ID() string {
	return st.t.key()
}

func (st *scheduledTick) OnTrigger() (bool, *time.Time) {
	t := st.t
	t.mu.Lock()
	if !t.running || t.gen != st.gen {
		t.mu.Unlock()
		return false, nil
	}
	if t.mode == ModeSingleShot {
		t.running = false
	}
	period := t.period
	mode := t.mode
	t.mu.Unlock()

	t.svc.ctrl.Pend(irq.RTC1, t.handler)

	if mode != ModeRepeated {
		return false, nil
	}
	next := time.Now().Add(period)
	return true, &next
}
