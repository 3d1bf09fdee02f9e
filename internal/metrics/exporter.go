package metrics

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// BufferStateEvent is one coalesced buffer-state observation, batched off
// the pcell/ue executor hot path before being applied to Prometheus gauges
// or forwarded to an external sink. Never constructed or consumed on the
// per-slot decision call stack itself — see internal/executor.CoalescingFlag
// for the synchronous, at-most-one-in-flight half of this pipeline.
type BufferStateEvent struct {
	Bearer string
	Bytes  uint32
}

// Exporter batches BufferStateEvent values using go-microbatch, the
// teacher's own batching library, exactly for the "reduce round trips"
// off-hot-path fan-in case it documents itself for.
type Exporter struct {
	rlc     *RLC
	batcher *microbatch.Batcher[BufferStateEvent]
}

// NewExporter constructs an Exporter applying batched events to rlc.
func NewExporter(rlc *RLC) *Exporter {
	e := &Exporter{rlc: rlc}
	e.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:       64,
		FlushInterval: 10 * time.Millisecond,
	}, e.process)
	return e
}

func (e *Exporter) process(_ context.Context, jobs []BufferStateEvent) error {
	for _, j := range jobs {
		e.rlc.SetBufferBytes(j.Bearer, float64(j.Bytes))
	}
	return nil
}

// Submit enqueues ev for batched export. Non-blocking beyond the channel
// handshake; callers on a hot path should instead go through a
// logging/executor-level coalescing flag and only call Submit from the
// deferred callback.
func (e *Exporter) Submit(ctx context.Context, ev BufferStateEvent) {
	_, _ = e.batcher.Submit(ctx, ev)
}

// Close releases the underlying batcher.
func (e *Exporter) Close() error {
	return e.batcher.Close()
}
