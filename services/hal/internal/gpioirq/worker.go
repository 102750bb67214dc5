// Package gpioirq bridges pin interrupts into channel-delivered edge
// events. The interrupt handler only enqueues the pin number; level
// sampling, debounce and edge filtering all happen on the worker
// goroutine where allocation and locking are allowed.
package gpioirq

import (
	"context"
	"sync"
	"time"

	"supermini-go/services/hal/internal/core"
	"supermini-go/x/timex"
)

type watcher struct {
	pin        core.IRQPin
	edge       core.Edge
	debounceMs int64
	ch         chan core.EdgeEvent

	lastLevel bool
	lastAtMs  int64
}

type Worker struct {
	mu    sync.Mutex
	isrQ  chan int
	byPin map[int]*watcher
}

func NewWorker(queueLen int) *Worker {
	if queueLen <= 0 {
		queueLen = 16
	}
	return &Worker{
		isrQ:  make(chan int, queueLen),
		byPin: make(map[int]*watcher),
	}
}

// Watch arms the pin's interrupt on both edges and returns a stream of
// debounced, filtered events. One watcher per pin.
func (w *Worker) Watch(pin core.IRQPin, edge core.Edge, debounce time.Duration, buf int) (core.GPIOEdgeStream, error) {
	if buf <= 0 {
		buf = 4
	}
	w.mu.Lock()
	if _, exists := w.byPin[pin.Number()]; exists {
		w.mu.Unlock()
		return nil, core.ErrPinInUse
	}
	wt := &watcher{
		pin:        pin,
		edge:       edge,
		debounceMs: int64(debounce / time.Millisecond),
		ch:         make(chan core.EdgeEvent, buf),
		lastLevel:  pin.Get(),
		lastAtMs:   0,
	}
	w.byPin[pin.Number()] = wt
	w.mu.Unlock()

	n := pin.Number()
	// The handler runs in interrupt context: enqueue and return.
	err := pin.SetIRQ(core.EdgeBoth, func() {
		select {
		case w.isrQ <- n:
		default:
		}
	})
	if err != nil {
		w.mu.Lock()
		delete(w.byPin, n)
		w.mu.Unlock()
		return nil, err
	}
	return &stream{w: w, pinNum: n, ch: wt.ch}, nil
}

// Unwatch disarms the interrupt and closes the stream channel.
func (w *Worker) Unwatch(pinNum int) {
	w.mu.Lock()
	wt, ok := w.byPin[pinNum]
	if ok {
		delete(w.byPin, pinNum)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	wt.pin.ClearIRQ()
	close(wt.ch)
}

// Run drains the interrupt queue until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pinNum := <-w.isrQ:
			w.service(pinNum)
		}
	}
}

func (w *Worker) service(pinNum int) {
	w.mu.Lock()
	wt, ok := w.byPin[pinNum]
	w.mu.Unlock()
	if !ok {
		return
	}

	level := wt.pin.Get()
	if level == wt.lastLevel {
		return // glitch shorter than our sampling, or repeated IRQ
	}
	now := timex.NowMs()
	if wt.debounceMs > 0 && now-wt.lastAtMs < wt.debounceMs {
		return
	}

	var edge core.Edge
	if level {
		edge = core.EdgeRising
	} else {
		edge = core.EdgeFalling
	}
	wt.lastLevel = level
	wt.lastAtMs = now

	if wt.edge != core.EdgeBoth && wt.edge != edge {
		return
	}
	select {
	case wt.ch <- core.EdgeEvent{Level: level, Edge: edge, TSms: now}:
	default:
	}
}

type stream struct {
	w      *Worker
	pinNum int
	ch     chan core.EdgeEvent
	once   sync.Once
}

func (s *stream) Events() <-chan core.EdgeEvent { return s.ch }

func (s *stream) Close() {
	s.once.Do(func() { s.w.Unwatch(s.pinNum) })
}
