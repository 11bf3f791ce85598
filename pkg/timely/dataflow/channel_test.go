package dataflow

import (
	"testing"
	"time"

	"github.com/jabolina/go-timely/pkg/timely/progress"
)

func TestBuffer_FlushesOnMaxSize(t *testing.T) {
	var flushed []Batch[progress.IntTime, int]
	buf := NewBuffer[progress.IntTime, int](BufferConfig{MaxSize: 3, FlushInterval: time.Hour}, func(b Batch[progress.IntTime, int]) {
		flushed = append(flushed, b)
	})

	buf.Give(progress.IntTime(1), 1)
	buf.Give(progress.IntTime(1), 2)
	if len(flushed) != 0 {
		t.Fatalf("expected no flush before MaxSize reached, got %v", flushed)
	}
	buf.Give(progress.IntTime(1), 3)
	if len(flushed) != 1 || len(flushed[0].Records) != 3 {
		t.Fatalf("expected one flush of 3 records, got %v", flushed)
	}
}

func TestBuffer_FlushesOnTimestampChange(t *testing.T) {
	var flushed []Batch[progress.IntTime, int]
	buf := NewBuffer[progress.IntTime, int](BufferConfig{MaxSize: 100, FlushInterval: time.Hour}, func(b Batch[progress.IntTime, int]) {
		flushed = append(flushed, b)
	})

	buf.Give(progress.IntTime(1), 1)
	buf.Give(progress.IntTime(1), 2)
	buf.Give(progress.IntTime(2), 3)

	if len(flushed) != 1 {
		t.Fatalf("expected one flush on timestamp change, got %v", flushed)
	}
	if flushed[0].Time != progress.IntTime(1) || len(flushed[0].Records) != 2 {
		t.Fatalf("unexpected flushed batch: %+v", flushed[0])
	}

	buf.Flush()
	if len(flushed) != 2 || flushed[1].Time != progress.IntTime(2) {
		t.Fatalf("expected explicit flush to emit the remaining record, got %v", flushed)
	}
}

func TestBuffer_DueReportsStaleness(t *testing.T) {
	buf := NewBuffer[progress.IntTime, int](BufferConfig{MaxSize: 100, FlushInterval: time.Millisecond}, func(Batch[progress.IntTime, int]) {})
	if buf.Due(time.Now()) {
		t.Fatalf("empty buffer should never be due")
	}
	buf.Give(progress.IntTime(1), 1)
	if buf.Due(time.Now()) {
		t.Fatalf("freshly given record should not be immediately due")
	}
	time.Sleep(2 * time.Millisecond)
	if !buf.Due(time.Now()) {
		t.Fatalf("expected buffer to be due after FlushInterval elapses")
	}
}

func TestTee_ClonesForAllButLastConsumer(t *testing.T) {
	var a, b []Batch[progress.IntTime, int]
	tee := NewTee[progress.IntTime, int]()
	tee.addConsumer(sinkFunc[progress.IntTime, int](func(batch Batch[progress.IntTime, int]) { a = append(a, batch) }))
	tee.addConsumer(sinkFunc[progress.IntTime, int](func(batch Batch[progress.IntTime, int]) { b = append(b, batch) }))

	original := Batch[progress.IntTime, int]{Time: progress.IntTime(1), Records: []int{1, 2, 3}}
	tee.push(original)

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected both consumers to receive the batch")
	}
	// Mutating the first consumer's copy must not affect the second's.
	a[0].Records[0] = 99
	if b[0].Records[0] != 1 {
		t.Fatalf("expected consumers to hold independent record slices, got %v", b[0].Records)
	}
}

// sinkFunc adapts a plain function into a consumer for tests.
type sinkFunc[T progress.Timestamp[T], R any] func(Batch[T, R])

func (f sinkFunc[T, R]) push(b Batch[T, R]) { f(b) }
