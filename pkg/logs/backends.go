package logs

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/panjf2000/ants"
	"github.com/ravasco/go-devboard/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/smallnest/goframe"
	"github.com/tarm/serial"
)

const logsCaller = "Logs"

const defaultUARTBaud = 115200

// Config selects the output backends attached by InitDefaultBackends. The
// zero value yields console-only logging at info level.
type Config struct {
	Level      string
	Deferred   bool
	UARTDevice string
	UARTBaud   int
	TraceAddr  string
}

var (
	traceEncoderConfig = goframe.EncoderConfig{
		ByteOrder:                       binary.BigEndian,
		LengthFieldLength:               4,
		LengthAdjustment:                0,
		LengthIncludesLengthFieldLength: false,
	}
	traceDecoderConfig = goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldOffset:   0,
		LengthFieldLength:   4,
		LengthAdjustment:    0,
		InitialBytesToStrip: 4,
	}
)

var (
	closers []io.Closer
	pool    *ants.Pool
)

// InitDefaultBackends attaches the configured set of output backends. The
// console backend is always attached; a UART sink and a framed TCP trace sink
// are added when configured. With Deferred set, backend writes are handed off
// to a single worker so that callers in interrupt context never block on a
// slow sink.
func InitDefaultBackends(cfg Config) errors.Error {
	lvl := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return errors.FatalError(400, fmt.Sprintf("unknown log level %q", cfg.Level), logsCaller)
		}
		lvl = parsed
	}

	writers := []io.Writer{os.Stderr}

	if cfg.UARTDevice != "" {
		baud := cfg.UARTBaud
		if baud == 0 {
			baud = defaultUARTBaud
		}
		port, err := serial.OpenPort(&serial.Config{Name: cfg.UARTDevice, Baud: baud})
		if err != nil {
			return errors.FatalError(500, fmt.Sprintf("opening UART backend: %s", err), logsCaller)
		}
		writers = append(writers, port)
		closers = append(closers, port)
	}

	if cfg.TraceAddr != "" {
		conn, err := net.Dial("tcp", cfg.TraceAddr)
		if err != nil {
			return errors.FatalError(500, fmt.Sprintf("dialing trace backend: %s", err), logsCaller)
		}
		fw := &frameWriter{fc: goframe.NewLengthFieldBasedFrameConn(traceEncoderConfig, traceDecoderConfig, conn)}
		writers = append(writers, fw)
		closers = append(closers, fw)
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	if cfg.Deferred {
		// One worker keeps entries ordered.
		p, err := ants.NewPool(1)
		if err != nil {
			return errors.FatalError(500, fmt.Sprintf("creating deferred log pool: %s", err), logsCaller)
		}
		pool = p
		w = &deferredWriter{pool: p, w: w}
	}

	setBackends(w, lvl)
	return nil
}

// Close releases the deferred worker and closes every attached backend.
func Close() {
	if pool != nil {
		pool.Release()
		pool = nil
	}
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

// frameWriter ships each log entry as one frame over a goframe connection.
type frameWriter struct {
	fc goframe.FrameConn
}

func (fw *frameWriter) Write(p []byte) (int, error) {
	if err := fw.fc.WriteFrame(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (fw *frameWriter) Close() error {
	return fw.fc.Close()
}

// deferredWriter hands entry writes to a worker pool. The entry bytes are
// copied because logrus reuses its buffer after Write returns.
type deferredWriter struct {
	pool *ants.Pool
	w    io.Writer
}

func (dw *deferredWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	if err := dw.pool.Submit(func() {
		dw.w.Write(buf)
	}); err != nil {
		// Pool unavailable, write in place.
		return dw.w.Write(p)
	}
	return len(p), nil
}
