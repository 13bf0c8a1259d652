package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer lets the animation goroutine and the test share a buffer.
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

func TestSpinnerStartStop(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "Building deck",
		NoColor:  true,
		Interval: 20 * time.Millisecond,
	})

	spinner.Start()
	spinner.Start() // second start is ignored
	time.Sleep(100 * time.Millisecond)
	spinner.Stop()
	spinner.Stop()

	out := buf.String()
	if !strings.Contains(out, "Building deck") {
		t.Errorf("expected spinner message, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("expected line to be cleared on stop, got %q", out)
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	var buf syncBuffer
	NewSpinner(&buf, SpinnerOptions{NoColor: true}).Stop()

	if buf.String() != "" {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestWithSpinner(t *testing.T) {
	var buf syncBuffer
	err := WithSpinner(&buf, "Building deck", true, func() error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "✓ Building deck\n") {
		t.Errorf("expected success line, got %q", buf.String())
	}
}

func TestWithSpinnerError(t *testing.T) {
	var buf syncBuffer
	want := errors.New("missing partial")

	err := WithSpinner(&buf, "Building deck", true, func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if !strings.HasSuffix(buf.String(), "❌ Building deck failed\n") {
		t.Errorf("expected failure line, got %q", buf.String())
	}
}
