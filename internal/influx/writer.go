package influx

import (
	"context"
	"sync"
	"time"
)

// Defaults for the buffered batch writer.
const (
	defaultQueueSize     = 64
	defaultMaxLines      = 5000
	defaultMaxBytes      = 30 * 1024
	defaultFlushInterval = 60 * time.Second
)

// Sink is the destination a Writer flushes batches to.
//
// *Client satisfies this interface; tests substitute fakes.
type Sink interface {
	WriteBatch(ctx context.Context, body []byte) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WriterOptions tunes the batch writer. Zero values select defaults.
type WriterOptions struct {
	// QueueSize is the submission channel capacity. Producers block once
	// the queue is full, which backpressures ingestion rather than
	// dropping records.
	QueueSize int

	// MaxLines triggers a flush once the pending batch holds this many
	// line protocol records.
	MaxLines int

	// MaxBytes triggers a flush once the pending batch body reaches this
	// many bytes.
	MaxBytes int

	// FlushInterval is the timer-driven flush period for partial batches.
	FlushInterval time.Duration
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MaxLines <= 0 {
		o.MaxLines = defaultMaxLines
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}
	return o
}

// request is one queued record: its encoded line plus the status cell the
// producer watches.
type request struct {
	line []byte
	cell *StatusCell
}

// Writer accumulates submitted line protocol records and flushes them to
// a Sink in batches.
//
// Records are flushed in strict submission order. A flush happens when the
// pending batch reaches MaxLines or MaxBytes, when the flush timer fires,
// or on shutdown. When a flush fails the undelivered records stay at the
// front of the pending queue, every one still Buffered, and are retried
// on the next trigger; retries are unbounded. Nothing is persisted, so
// buffered records are lost if the process exits while the sink is down.
//
// Thread Safety: Submit is safe for concurrent use. Run must be called
// exactly once.
type Writer struct {
	sink   Sink
	opts   WriterOptions
	logger Logger

	submissions chan request
	quit        chan struct{}
	quitOnce    sync.Once
	done        chan struct{}
}

// NewWriter creates a batch writer for the given sink. Call Run to start
// the flush loop, then Submit records. Logging defaults to a no-op
// logger; use SetLogger before Run to enable it.
func NewWriter(sink Sink, opts WriterOptions) *Writer {
	opts = opts.withDefaults()
	return &Writer{
		sink:        sink,
		opts:        opts,
		logger:      noopLogger{},
		submissions: make(chan request, opts.QueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetLogger configures structured logging. Must be called before Run.
func (w *Writer) SetLogger(logger Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Submit queues one encoded line for delivery and returns its status
// cell. Blocks while the submission queue is full.
//
// Returns:
//   - *StatusCell: Watchable delivery status for this record
//   - error: ErrWriterClosed if the writer has shut down
func (w *Writer) Submit(line []byte) (*StatusCell, error) {
	cell := newStatusCell()
	select {
	case <-w.quit:
		return nil, ErrWriterClosed
	default:
	}
	select {
	case w.submissions <- request{line: line, cell: cell}:
		return cell, nil
	case <-w.quit:
		return nil, ErrWriterClosed
	}
}

// Close stops accepting submissions and unblocks Run, which drains the
// queue and attempts one final flush before returning. Safe to call more
// than once. Blocks until the flush loop has exited.
func (w *Writer) Close() {
	w.quitOnce.Do(func() { close(w.quit) })
	<-w.done
}

// Run executes the flush loop until the context is cancelled or Close is
// called. On shutdown it closes the submission path, drains any queued
// submissions, and flushes the pending batch once; records still
// unflushed after a failed final flush remain Buffered and are lost.
// Submit returns ErrWriterClosed once shutdown has begun.
//
// Returns:
//   - error: always nil; flush failures are logged and retried, not
//     propagated
func (w *Writer) Run(ctx context.Context) error {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	var pending []request
	var pendingBytes int

	flush := func() {
		pending, pendingBytes = w.flush(ctx, pending, pendingBytes)
	}

	for {
		select {
		case req := <-w.submissions:
			req.cell.set(StatusBuffered)
			pending = append(pending, req)
			pendingBytes += len(req.line)
			if len(pending) >= w.opts.MaxLines || pendingBytes >= w.opts.MaxBytes {
				flush()
			}

		case <-ticker.C:
			if len(pending) > 0 {
				flush()
			}

		case <-ctx.Done():
			// Reject further submissions before the final drain, so a
			// producer racing shutdown gets ErrWriterClosed instead of
			// parking a record that will never flush.
			w.quitOnce.Do(func() { close(w.quit) })
			w.finalFlush(pending, pendingBytes)
			return nil

		case <-w.quit:
			w.finalFlush(pending, pendingBytes)
			return nil
		}
	}
}

// finalFlush drains queued submissions and attempts one last delivery
// with its own deadline, since the run context is already cancelled
// during shutdown.
func (w *Writer) finalFlush(pending []request, pendingBytes int) {
	pending, pendingBytes = w.drain(pending, pendingBytes)
	if len(pending) == 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	w.flush(flushCtx, pending, pendingBytes)
}

// drain moves already-queued submissions into the pending batch without
// blocking. Called on shutdown so records accepted before Close are
// included in the final flush.
func (w *Writer) drain(pending []request, pendingBytes int) ([]request, int) {
	for {
		select {
		case req := <-w.submissions:
			req.cell.set(StatusBuffered)
			pending = append(pending, req)
			pendingBytes += len(req.line)
		default:
			return pending, pendingBytes
		}
	}
}

// flush posts the pending batch to the sink, oldest first, at most
// MaxLines per request. On success delivered records are marked Accepted
// and dropped; on failure the undelivered remainder is kept intact, in
// order, for the next trigger.
func (w *Writer) flush(ctx context.Context, pending []request, pendingBytes int) ([]request, int) {
	for len(pending) > 0 {
		n := len(pending)
		if n > w.opts.MaxLines {
			n = w.opts.MaxLines
		}
		batch := pending[:n]

		var body []byte
		for _, req := range batch {
			body = append(body, req.line...)
		}

		if err := w.sink.WriteBatch(ctx, body); err != nil {
			w.logger.Error("batch write failed, will retry",
				"lines", len(pending),
				"bytes", pendingBytes,
				"error", err)
			return pending, pendingBytes
		}

		for _, req := range batch {
			req.cell.set(StatusAccepted)
			pendingBytes -= len(req.line)
		}
		w.logger.Debug("batch flushed",
			"lines", n,
			"bytes", len(body))

		pending = pending[n:]
	}
	return pending[:0], 0
}
