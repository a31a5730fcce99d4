package influx

import "context"

// DiscardSink accepts every batch without writing it anywhere. Used in
// read-only mode to replay live traffic without touching the bucket.
type DiscardSink struct {
	logger Logger
}

// NewDiscardSink creates a sink that logs and drops batches.
func NewDiscardSink(logger Logger) *DiscardSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DiscardSink{logger: logger}
}

// WriteBatch implements Sink.
func (s *DiscardSink) WriteBatch(_ context.Context, body []byte) error {
	s.logger.Info("read-only mode, discarding batch",
		"lines", CountLines(body),
		"bytes", len(body))
	return nil
}
