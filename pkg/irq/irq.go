// Package irq models the interrupt controller of the board. Interrupt service
// routines pended on a line run to completion on a single dispatch goroutine,
// at the priority assigned to the line; code running anywhere else observes
// the baseline thread priority. CurrentPriority lets handlers tell the two
// apart, the way firmware reads the active interrupt priority.
package irq

import "sync/atomic"

// IRQ identifies an interrupt line.
type IRQ uint8

const (
	GPIOTE IRQ = iota
	RTC1
)

func (i IRQ) String() string {
	switch i {
	case GPIOTE:
		return "GPIOTE"
	case RTC1:
		return "RTC1"
	default:
		return "IRQn?"
	}
}

// Priority is an interrupt priority level. Lower values preempt higher ones;
// PriorityThread is the baseline (non-interrupt) level.
type Priority uint8

const (
	PriorityHigh   Priority = 2
	PriorityLow    Priority = 6
	PriorityThread Priority = 15
)

const pendQueueSize = 1024

type pendedISR struct {
	irq IRQ
	isr func()
}

type Controller struct {
	pending    chan pendedISR
	current    int32
	priorities map[IRQ]Priority
}

func NewController() *Controller {
	c := &Controller{
		pending: make(chan pendedISR, pendQueueSize),
		current: int32(PriorityThread),
		priorities: map[IRQ]Priority{
			GPIOTE: PriorityLow,
			RTC1:   PriorityLow,
		},
	}
	go c.run()
	return c
}

// Pend queues an interrupt service routine on the given line. Routines run in
// pend order, one at a time.
func (c *Controller) Pend(irq IRQ, isr func()) {
	c.pending <- pendedISR{irq: irq, isr: isr}
}

// CurrentPriority returns the interrupt priority of the calling context:
// the line's priority inside a pended routine, PriorityThread everywhere else.
func (c *Controller) CurrentPriority() Priority {
	return Priority(atomic.LoadInt32(&c.current))
}

// InHandlerMode reports whether the caller runs inside an interrupt handler.
func (c *Controller) InHandlerMode() bool {
	return c.CurrentPriority() != PriorityThread
}

func (c *Controller) run() {
	for req := range c.pending {
		prio, ok := c.priorities[req.irq]
		if !ok {
			prio = PriorityLow
		}
		atomic.StoreInt32(&c.current, int32(prio))
		req.isr()
		atomic.StoreInt32(&c.current, int32(PriorityThread))
	}
}
