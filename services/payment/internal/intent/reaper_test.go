package intent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 3, s.err
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

func TestReaperSweepsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var out syncBuffer
	sw := &countingSweeper{}
	r := NewReaper(sw, 10*time.Millisecond, slog.New(slog.NewJSONHandler(&out, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
	assert.Contains(t, out.String(), `"purged":3`)
}

func TestReaperLogsSweepErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var out syncBuffer
	sw := &countingSweeper{err: errors.New("redis down")}
	r := NewReaper(sw, 5*time.Millisecond, slog.New(slog.NewJSONHandler(&out, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	assert.Contains(t, out.String(), "intent_sweep_error")
	assert.Contains(t, out.String(), "redis down")
}

func TestReaperWithMemoryStore(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	require.NoError(t, s.Put(context.Background(), testIntent("A-reap", clock.Now())))
	clock.Advance(time.Hour)

	r := NewReaper(s, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
