package logs

import (
	"bytes"
	"encoding/binary"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/panjf2000/ants"
	"github.com/smallnest/goframe"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoggerTagsOwner(t *testing.T) {
	logger := NewLogger("TestOwner")
	buf := &syncBuffer{}
	logger.SetOutput(buf)

	logger.Info("hello")

	if !strings.Contains(buf.String(), "[TestOwner] hello") {
		t.Errorf("log output missing owner tag: %q", buf.String())
	}
}

func TestDeferredWriterKeepsOrder(t *testing.T) {
	pool, err := ants.NewPool(1)
	if err != nil {
		t.Fatalf("creating pool: %s", err)
	}
	defer pool.Release()

	buf := &syncBuffer{}
	dw := &deferredWriter{pool: pool, w: buf}

	for _, s := range []string{"one ", "two ", "three"} {
		if _, err := dw.Write([]byte(s)); err != nil {
			t.Fatalf("Write failed: %s", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for buf.String() != "one two three" {
		if time.Now().After(deadline) {
			t.Errorf("deferred writes incomplete or out of order: %q", buf.String())
			t.FailNow()
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFrameWriterFramesEntries(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	encoderConfig := goframe.EncoderConfig{
		ByteOrder:         binary.BigEndian,
		LengthFieldLength: 4,
	}
	decoderConfig := goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldLength:   4,
		InitialBytesToStrip: 4,
	}

	fw := &frameWriter{fc: goframe.NewLengthFieldBasedFrameConn(traceEncoderConfig, traceDecoderConfig, client)}
	defer fw.Close()
	reader := goframe.NewLengthFieldBasedFrameConn(encoderConfig, decoderConfig, server)

	go func() {
		fw.Write([]byte("entry one"))
		fw.Write([]byte("entry two"))
	}()

	for _, want := range []string{"entry one", "entry two"} {
		frame, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame failed: %s", err)
		}
		if string(frame) != want {
			t.Errorf("got frame %q, want %q", frame, want)
		}
	}
}
