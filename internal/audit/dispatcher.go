package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of waiting.
	// Events carrying a Reason (revocations) always wait.
	DropIfFull bool
	// Now stamps events that arrive without a Timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher forwards events to a sink from a single goroutine, so sinks need
// not be safe for concurrent use.
type Dispatcher struct {
	dropIfFull bool
	now        func() time.Time
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	stopped    chan struct{}
	dropped    atomic.Uint64
	panics     atomic.Uint64
	closing    atomic.Bool
	closeOnce  sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled; a nil
// *Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := &Dispatcher{
		dropIfFull: cfg.DropIfFull,
		now:        cfg.Now,
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver keeps the loop alive when a sink panics.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.panics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. A full buffer drops ev when DropIfFull is set and ev has
// no Reason; otherwise Emit waits until there is room, ctx is done, or the
// dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now().UTC()
	}

	if d.dropIfFull && ev.Reason == "" {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events and waits for queued ones to reach the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.stopped
	})
}

// Dropped counts events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics counts deliveries that panicked inside the sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
