package dataflow

import (
	"time"

	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// Counter accumulates (timestamp, count) deltas into a shared ChangeBatch
// that the scheduler drains once per step to feed the progress tracker.
// Grounded on the original's PushCounter/PullCounter pair, which wrap a
// channel endpoint purely to keep a running ChangeBatch of what crossed it.
type Counter[T progress.Timestamp[T]] struct {
	counts *progress.ChangeBatch[T]
}

// NewCounter wraps a shared ChangeBatch for recording.
func NewCounter[T progress.Timestamp[T]](counts *progress.ChangeBatch[T]) *Counter[T] {
	return &Counter[T]{counts: counts}
}

// Record adds one more delta at t.
func (c *Counter[T]) Record(t T, delta int64) {
	c.counts.Update(t, delta)
}

// BufferConfig tunes how a single output-to-consumer edge batches records
// before flushing. Grounded on joeycumines-go-utilpkg/microbatch's
// MaxSize/FlushInterval knobs, generalizing the original OutputPort's
// fixed 256-record buffer into a configurable policy.
type BufferConfig struct {
	// MaxSize is the number of records buffered before an automatic flush.
	MaxSize int
	// FlushInterval is how long a non-full buffer is allowed to sit before
	// an idle flush is due; enforced only when the owner polls Due.
	FlushInterval time.Duration
}

// DefaultBufferConfig mirrors the original's hard-coded output buffer
// size, with a 10ms idle flush akin to microbatch's default window.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{MaxSize: 256, FlushInterval: 10 * time.Millisecond}
}

// Buffer accumulates same-timestamp records for one destination and flushes
// them as a Batch once full, once the timestamp changes, or once Flush is
// called explicitly (e.g. at session close or operator yield).
type Buffer[T progress.Timestamp[T], R any] struct {
	cfg        BufferConfig
	time       T
	hasTime    bool
	data       []R
	lastFlush  time.Time
	since      time.Time
	onFlush    func(Batch[T, R])
}

// NewBuffer returns a buffer that calls onFlush with each completed batch.
func NewBuffer[T progress.Timestamp[T], R any](cfg BufferConfig, onFlush func(Batch[T, R])) *Buffer[T, R] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultBufferConfig().MaxSize
	}
	return &Buffer[T, R]{cfg: cfg, onFlush: onFlush}
}

// Give appends one record at timestamp t, flushing first if a different
// timestamp is already buffered (a buffer only ever holds one timestamp's
// worth of records at a time).
func (b *Buffer[T, R]) Give(t T, r R) {
	if len(b.data) > 0 && b.time != t {
		b.Flush()
	}
	if len(b.data) == 0 {
		b.since = time.Now()
	}
	b.time = t
	b.hasTime = true
	b.data = append(b.data, r)
	if len(b.data) >= b.cfg.MaxSize {
		b.Flush()
	}
}

// Flush emits whatever is currently buffered, if anything.
func (b *Buffer[T, R]) Flush() {
	if len(b.data) == 0 {
		return
	}
	batch := Batch[T, R]{Time: b.time, Records: b.data}
	b.data = nil
	b.lastFlush = time.Now()
	b.onFlush(batch)
}

// Due reports whether this buffer holds unflushed data whose first record
// was given at least its configured flush interval before now. The
// scheduler does not poll it; a partial batch is flushed only by Flush,
// a timestamp change or a full buffer.
func (b *Buffer[T, R]) Due(now time.Time) bool {
	return len(b.data) > 0 && now.Sub(b.since) >= b.cfg.FlushInterval
}
