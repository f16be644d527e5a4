package tasks

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunPeriodicRunsImmediatelyAndRepeats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		RunPeriodic(ctx, 5*time.Millisecond, nil, "test", func(context.Context) error {
			calls.Add(1)
			return nil
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not return after cancel")
	}
}

func TestRunPeriodicLogsErrors(t *testing.T) {
	var buf syncBuffer
	logger := log.New(&buf, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		RunPeriodic(ctx, time.Hour, logger, "Energy", func(context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	out := buf.String()
	assert.Contains(t, out, "[Energy] Background task error: boom")
	assert.Contains(t, out, "[Energy] Background task stopped")
}

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
