package influx

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records delivered batches and can be told to fail the first
// N write attempts.
type fakeSink struct {
	mu       sync.Mutex
	batches  [][]byte
	failures int
	calls    int
}

func (s *fakeSink) WriteBatch(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("sink down")
	}
	s.batches = append(s.batches, append([]byte(nil), body...))
	return nil
}

func (s *fakeSink) delivered() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func startWriter(t *testing.T, sink Sink, opts WriterOptions) *Writer {
	t.Helper()
	w := NewWriter(sink, opts)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWriter_FlushOnMaxLines(t *testing.T) {
	sink := &fakeSink{}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      3,
		FlushInterval: time.Hour,
	})

	lines := [][]byte{
		[]byte("telemetry power=1i 1\n"),
		[]byte("telemetry power=2i 2\n"),
		[]byte("telemetry power=3i 3\n"),
	}
	cells := make([]*StatusCell, 0, len(lines))
	for _, line := range lines {
		cell, err := w.Submit(line)
		require.NoError(t, err)
		cells = append(cells, cell)
	}

	for _, cell := range cells {
		require.NoError(t, cell.Await(awaitCtx(t), StatusAccepted))
	}

	batches := sink.delivered()
	require.Len(t, batches, 1)
	assert.Equal(t, bytes.Join(lines, nil), batches[0])
}

func TestWriter_FlushOnMaxBytes(t *testing.T) {
	sink := &fakeSink{}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      1000,
		MaxBytes:      40,
		FlushInterval: time.Hour,
	})

	// Two 22-byte lines cross the 40-byte threshold on the second submit.
	line := []byte("telemetry power=1i 1\n.")
	_, err := w.Submit(line)
	require.NoError(t, err)
	cell, err := w.Submit(line)
	require.NoError(t, err)

	require.NoError(t, cell.Await(awaitCtx(t), StatusAccepted))
	require.Len(t, sink.delivered(), 1)
}

func TestWriter_TimerFlushesPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      1000,
		FlushInterval: 50 * time.Millisecond,
	})

	// Several records, all below the size and count thresholds. The
	// timer must flush them as one batch, in submission order.
	lines := [][]byte{
		[]byte("telemetry power=7i 7\n"),
		[]byte("telemetry power=8i 8\n"),
		[]byte("telemetry power=9i 9\n"),
	}
	cells := make([]*StatusCell, 0, len(lines))
	for _, line := range lines {
		cell, err := w.Submit(line)
		require.NoError(t, err)
		cells = append(cells, cell)
	}

	for _, cell := range cells {
		require.NoError(t, cell.Await(awaitCtx(t), StatusAccepted))
	}
	batches := sink.delivered()
	require.Len(t, batches, 1)
	assert.Equal(t, string(bytes.Join(lines, nil)), string(batches[0]))
}

func TestWriter_RetryPreservesOrderAndStatus(t *testing.T) {
	sink := &fakeSink{failures: 2}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      2,
		FlushInterval: 15 * time.Millisecond,
	})

	first, err := w.Submit([]byte("telemetry power=1i 1\n"))
	require.NoError(t, err)
	second, err := w.Submit([]byte("telemetry power=2i 2\n"))
	require.NoError(t, err)

	// Both records must stay Buffered across the failed attempts and end
	// up Accepted together once the sink recovers.
	require.NoError(t, first.Await(awaitCtx(t), StatusBuffered))
	require.NoError(t, first.Await(awaitCtx(t), StatusAccepted))
	require.NoError(t, second.Await(awaitCtx(t), StatusAccepted))

	assert.GreaterOrEqual(t, sink.callCount(), 3)
	batches := sink.delivered()
	require.Len(t, batches, 1)
	assert.Equal(t, "telemetry power=1i 1\ntelemetry power=2i 2\n", string(batches[0]))
}

func TestWriter_RecordsAppendBehindRequeuedBatch(t *testing.T) {
	sink := &fakeSink{failures: 1}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      1,
		FlushInterval: time.Hour,
	})

	// First submit triggers a flush that fails; the record is requeued at
	// the front. The second submit triggers another flush and the requeued
	// record must go out before the newer one.
	_, err := w.Submit([]byte("telemetry power=1i 1\n"))
	require.NoError(t, err)

	// Let the failing flush complete before the second record arrives.
	require.Eventually(t, func() bool { return sink.callCount() >= 1 },
		2*time.Second, 5*time.Millisecond)

	cell, err := w.Submit([]byte("telemetry power=2i 2\n"))
	require.NoError(t, err)
	require.NoError(t, cell.Await(awaitCtx(t), StatusAccepted))

	batches := sink.delivered()
	require.Len(t, batches, 2)
	assert.Equal(t, "telemetry power=1i 1\n", string(batches[0]))
	assert.Equal(t, "telemetry power=2i 2\n", string(batches[1]))
}

func TestWriter_CloseFlushesPending(t *testing.T) {
	sink := &fakeSink{}
	w := startWriter(t, sink, WriterOptions{
		MaxLines:      1000,
		FlushInterval: time.Hour,
	})

	cell, err := w.Submit([]byte("telemetry power=9i 9\n"))
	require.NoError(t, err)

	w.Close()

	assert.Equal(t, StatusAccepted, cell.Status())
	require.Len(t, sink.delivered(), 1)
}

func TestWriter_SubmitAfterClose(t *testing.T) {
	sink := &fakeSink{}
	w := startWriter(t, sink, WriterOptions{FlushInterval: time.Hour})

	w.Close()

	_, err := w.Submit([]byte("telemetry power=1i 1\n"))
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestWriter_SubmitAfterRunExit(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter(sink, WriterOptions{FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	cancel()
	<-done

	// Cancellation alone must close the submission path. A producer
	// outliving the flush loop would otherwise park a record in the
	// queue at Initiated with nothing left to deliver it.
	_, err := w.Submit([]byte("telemetry power=1i 1\n"))
	assert.ErrorIs(t, err, ErrWriterClosed)
}
