package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ravasco/go-devboard/configs"
	"github.com/ravasco/go-devboard/examples/blinky"
	"github.com/ravasco/go-devboard/internal/eventhub"
	"github.com/ravasco/go-devboard/pkg/apptimer"
	"github.com/ravasco/go-devboard/pkg/board"
	"github.com/ravasco/go-devboard/pkg/drivers/clock"
	"github.com/ravasco/go-devboard/pkg/drivers/gpiote"
	"github.com/ravasco/go-devboard/pkg/irq"
	"github.com/ravasco/go-devboard/pkg/logs"
	"github.com/ravasco/go-devboard/pkg/pin"
)

func main() {
	var (
		configFile string
		uartDevice string
		traceAddr  string
		logLevel   string
		deferred   bool
		period     time.Duration
	)
	flag.StringVar(&configFile, "config", "", "JSON config file")
	flag.StringVar(&uartDevice, "uart", "", "serial device for the UART log sink")
	flag.StringVar(&traceAddr, "trace", "", "TCP address for the framed trace sink")
	flag.StringVar(&logLevel, "level", "", "log level")
	flag.BoolVar(&deferred, "deferred", false, "process log backends on a worker instead of in place")
	flag.DurationVar(&period, "period", 0, "LED toggle period")
	flag.Parse()

	config := configs.Default()
	if configFile != "" {
		fileConfig, err := configs.ReadConfigFromFile(configFile)
		if err != nil {
			panic(err)
		}
		config = fileConfig
	}
	if uartDevice != "" {
		config.UARTDevice = uartDevice
	}
	if traceAddr != "" {
		config.TraceAddr = traceAddr
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if deferred {
		config.LogDeferred = true
	}
	if period > 0 {
		config.TogglePeriod = period
	}

	ctrl := irq.NewController()
	hub := eventhub.New()
	clk := clock.New(hub)
	gpio := gpiote.New(ctrl, hub)
	timers := apptimer.New(ctrl, clk, hub)
	app := blinky.NewApp(ctrl, clk, gpio, timers, config.TogglePeriod)

	if err := app.Init(logs.Config{
		Level:      config.LogLevel,
		Deferred:   config.LogDeferred,
		UARTDevice: config.UARTDevice,
		UARTBaud:   config.UARTBaud,
		TraceAddr:  config.TraceAddr,
	}); err != nil {
		panic(err.Reason())
	}
	defer logs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go monitorBoard(hub)
	go readButtonPresses(gpio, cancel)

	app.Run(ctx)
}

// monitorBoard prints what a person would see on the physical board.
func monitorBoard(hub *eventhub.Hub) {
	logger := logs.NewLogger("BoardMonitor")
	events := make(chan eventhub.Event, 64)
	hub.Subscribe(eventhub.TopicLED, events)
	hub.Subscribe(eventhub.TopicTimer, events)

	for ev := range events {
		switch ev.Topic {
		case eventhub.TopicLED:
			if board.LEDIsOn(ev.Level) {
				logger.Infof("LED on pin %d is ON", ev.Pin)
			} else {
				logger.Infof("LED on pin %d is OFF", ev.Pin)
			}
		case eventhub.TopicTimer:
			if ev.Running {
				logger.Info("LED timer running")
			} else {
				logger.Info("LED timer stopped")
			}
		}
	}
}

// readButtonPresses turns stdin lines into button edges: "a" presses
// Button 1, "b" presses Button 2, "q" powers the board off.
func readButtonPresses(gpio *gpiote.Driver, cancel func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "a", "1":
			pressButton(gpio, board.Button1)
		case "b", "2":
			pressButton(gpio, board.Button2)
		case "q":
			cancel()
			return
		}
	}
	cancel()
}

// pressButton pulls the pin low and releases it, producing the high-to-low
// edge the buttons are sensed on.
func pressButton(gpio *gpiote.Driver, p pin.Pin) {
	gpio.SetPinLevel(p, pin.Low)
	time.Sleep(10 * time.Millisecond)
	gpio.SetPinLevel(p, pin.High)
}
