// Package logs is the logging front-end of the board. Components obtain a
// logger tagged with their name through NewLogger; InitDefaultBackends
// attaches the process-wide output sinks (console, and optionally a UART and
// a framed trace channel) to every logger created before or after the call.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// formatter adds default fields to each log entry.
type formatter struct {
	owner string
	lf    log.Formatter
}

// Format satisfies the log.Formatter interface.
func (f *formatter) Format(e *log.Entry) ([]byte, error) {
	e.Message = fmt.Sprintf("[%s] %s", f.owner, e.Message)
	return f.lf.Format(e)
}

var (
	mu      sync.Mutex
	output  io.Writer = os.Stderr
	level             = log.InfoLevel
	loggers []*log.Logger
)

func NewLogger(owner string) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&formatter{
		owner: owner,
		lf: &log.TextFormatter{
			ForceColors:     true,
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		},
	})
	mu.Lock()
	logger.SetOutput(output)
	logger.SetLevel(level)
	loggers = append(loggers, logger)
	mu.Unlock()
	return logger
}

// setBackends swaps the shared output and level on every registered logger.
func setBackends(w io.Writer, lvl log.Level) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	level = lvl
	for _, logger := range loggers {
		logger.SetOutput(w)
		logger.SetLevel(lvl)
	}
}
