package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"blockworld/mobs/internal/telemetry"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink receives routed events on its own goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router is the asynchronous Publisher used by the simulator. Publish never
// blocks: when the queue is full the event is dropped and counted.
type Router struct {
	cfg         Config
	queue       chan Event
	workers     []*sinkWorker
	clock       Clock
	diagnostics telemetry.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
	fields      map[string]any
	wg          sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
	nextWarn  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts the dispatch goroutine and one worker per sink. A nil
// diagnostics logger writes to stderr.
func NewRouter(clock Clock, cfg Config, diagnostics telemetry.Logger, namedSinks []NamedSink) *Router {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	if diagnostics == nil {
		diagnostics = telemetry.WrapLogger(log.New(os.Stderr, "[logging] ", log.LstdFlags))
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		clock:       clock,
		diagnostics: diagnostics,
		ctx:         ctx,
		cancel:      cancel,
		fields:      cfg.cloneFields(),
	}

	workerBuffer := min(max(bufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, &sinkWorker{
			name:        named.Name,
			sink:        named.Sink,
			events:      make(chan Event, workerBuffer),
			diagnostics: diagnostics,
		})
	}

	r.wg.Add(1)
	go r.dispatch()
	for _, worker := range r.workers {
		r.wg.Add(1)
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
	return r
}

func (r *Router) dispatch() {
	defer func() {
		for _, worker := range r.workers {
			close(worker.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case <-r.ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.forward(event)
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.published.Add(1)
	for _, worker := range r.workers {
		worker.enqueue(CloneEvent(event))
	}
}

// Publish implements Publisher.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || event.Type == "" || r.closed.Load() {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity || !r.cfg.allowsCategory(event.Category) {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

func (r *Router) warnDrop(event Event) {
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextWarn.Load()
	if now < next {
		return
	}
	if r.nextWarn.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.diagnostics.Printf("event queue full, dropping type=%s tick=%d (dropped=%d)", event.Type, event.Tick, r.dropped.Load())
	}
}

// Close drains queued events, stops the workers and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.published.Load(),
		DroppedTotal: r.dropped.Load(),
	}
}

// Sink returns the named sink or nil.
func (r *Router) Sink(name string) Sink {
	for _, worker := range r.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name        string
	sink        Sink
	events      chan Event
	diagnostics telemetry.Logger
	failures    int
	retryAt     time.Time
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- event:
	default:
		w.diagnostics.Printf("sink %s backlog full, dropping type=%s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.failures > 0 {
			if wait := time.Until(w.retryAt); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.failures++
			delay := time.Duration(1<<min(w.failures, 5)) * 100 * time.Millisecond
			w.retryAt = time.Now().Add(delay)
			w.diagnostics.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.failures = 0
	}
}
