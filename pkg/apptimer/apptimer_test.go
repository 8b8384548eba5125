package apptimer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ravasco/go-devboard/internal/eventhub"
	"github.com/ravasco/go-devboard/pkg/drivers/clock"
	"github.com/ravasco/go-devboard/pkg/irq"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hub := eventhub.New()
	clk := clock.New(hub)
	if err := clk.Init(); err != nil {
		t.Fatalf("clock Init failed: %s", err.Reason())
	}
	clk.LFCLKRequest()
	svc := New(irq.NewController(), clk, hub)
	if err := svc.Init(); err != nil {
		t.Fatalf("service Init failed: %s", err.Reason())
	}
	return svc
}

func TestInitRequiresLFCLK(t *testing.T) {
	hub := eventhub.New()
	clk := clock.New(hub)
	if err := clk.Init(); err != nil {
		t.Fatalf("clock Init failed: %s", err.Reason())
	}
	svc := New(irq.NewController(), clk, hub)

	err := svc.Init()
	if err == nil || !err.Fatal() {
		t.Error("Init without a running LFCLK should return a fatal error")
	}
}

func TestCreateRequiresInit(t *testing.T) {
	hub := eventhub.New()
	clk := clock.New(hub)
	svc := New(irq.NewController(), clk, hub)

	if _, err := svc.Create(ModeRepeated, func() {}); err == nil {
		t.Error("Create before Init should fail")
	}
}

func TestRepeatedTimerFires(t *testing.T) {
	svc := newTestService(t)
	var ticks int32
	timer, err := svc.Create(ModeRepeated, func() { atomic.AddInt32(&ticks, 1) })
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	if err := timer.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}
	time.Sleep(120 * time.Millisecond)
	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %s", err.Reason())
	}

	if got := atomic.LoadInt32(&ticks); got < 3 {
		t.Errorf("repeated timer fired only %d times", got)
	}
}

func TestSingleShotFiresOnce(t *testing.T) {
	svc := newTestService(t)
	var ticks int32
	timer, err := svc.Create(ModeSingleShot, func() { atomic.AddInt32(&ticks, 1) })
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	if err := timer.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&ticks); got != 1 {
		t.Errorf("single-shot timer fired %d times", got)
	}
	if timer.IsRunning() {
		t.Error("single-shot timer should stop itself after firing")
	}
}

func TestStartWhileRunningIsTemporary(t *testing.T) {
	svc := newTestService(t)
	timer, err := svc.Create(ModeRepeated, func() {})
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	if err := timer.Start(time.Hour); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}
	err = timer.Start(time.Hour)
	if err == nil || !err.Temporary() {
		t.Error("starting a running timer should be a temporary error")
	}
	if !timer.IsRunning() {
		t.Error("redundant start should leave the timer running")
	}
}

func TestStopWhileStoppedIsTemporary(t *testing.T) {
	svc := newTestService(t)
	timer, err := svc.Create(ModeRepeated, func() {})
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	err = timer.Stop()
	if err == nil || !err.Temporary() {
		t.Error("stopping a stopped timer should be a temporary error")
	}
}

func TestStopHaltsTicks(t *testing.T) {
	svc := newTestService(t)
	var ticks int32
	timer, err := svc.Create(ModeRepeated, func() { atomic.AddInt32(&ticks, 1) })
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	if err := timer.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}
	time.Sleep(50 * time.Millisecond)
	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %s", err.Reason())
	}

	settled := atomic.LoadInt32(&ticks)
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got > settled+1 {
		t.Errorf("timer kept firing after stop: %d then %d", settled, got)
	}
}

func TestRestartBeginsFreshSchedule(t *testing.T) {
	svc := newTestService(t)
	var ticks int32
	timer, err := svc.Create(ModeRepeated, func() { atomic.AddInt32(&ticks, 1) })
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}

	if err := timer.Start(30 * time.Millisecond); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}
	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %s", err.Reason())
	}
	if err := timer.Start(30 * time.Millisecond); err != nil {
		t.Fatalf("restart failed: %s", err.Reason())
	}

	// A fresh schedule waits one full period before the first tick.
	time.Sleep(10 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != 0 {
		t.Errorf("timer fired %d times before the first period elapsed", got)
	}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got == 0 {
		t.Error("restarted timer never fired")
	}
}

func TestHandlerRunsInInterruptContext(t *testing.T) {
	hub := eventhub.New()
	clk := clock.New(hub)
	if err := clk.Init(); err != nil {
		t.Fatalf("clock Init failed: %s", err.Reason())
	}
	clk.LFCLKRequest()
	ctrl := irq.NewController()
	svc := New(ctrl, clk, hub)
	if err := svc.Init(); err != nil {
		t.Fatalf("service Init failed: %s", err.Reason())
	}

	prioChan := make(chan irq.Priority, 1)
	timer, err := svc.Create(ModeSingleShot, func() {
		prioChan <- ctrl.CurrentPriority()
	})
	if err != nil {
		t.Fatalf("Create failed: %s", err.Reason())
	}
	if err := timer.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start failed: %s", err.Reason())
	}

	select {
	case prio := <-prioChan:
		if prio == irq.PriorityThread {
			t.Error("timer handler should run at interrupt priority")
		}
	case <-time.After(time.Second):
		t.FailNow()
	}
}
