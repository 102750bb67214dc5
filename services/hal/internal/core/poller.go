package core

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollReq asks the loop to dispatch one verb to the capability's device.
type PollReq struct {
	Addr CapAddr
	Verb string
}

type pollKey struct {
	addr CapAddr
	verb string
}

type pollEntry struct {
	key      pollKey
	interval time.Duration
	jitter   time.Duration
	next     time.Time
	index    int
}

type pollHeap []*pollEntry

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].next.Before(h[j].next) }
func (h pollHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pollHeap) Push(x any)        { e := x.(*pollEntry); e.index = len(*h); *h = append(*h, e) }
func (h *pollHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Poller runs declarative schedules and emits PollReqs. Due entries are
// delivered non-blocking; a full consumer drops the tick, the schedule
// keeps its cadence.
type Poller struct {
	mu    sync.Mutex
	heap  pollHeap
	byKey map[pollKey]*pollEntry
	wake  chan struct{}
	out   chan PollReq
	rng   *rand.Rand
}

func NewPoller(outBuf int) *Poller {
	if outBuf <= 0 {
		outBuf = 8
	}
	return &Poller{
		byKey: make(map[pollKey]*pollEntry),
		wake:  make(chan struct{}, 1),
		out:   make(chan PollReq, outBuf),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Poller) Out() <-chan PollReq { return p.out }

// Upsert installs or replaces a schedule. The first fire is spread by the
// jitter so many sensors configured together do not tick in lockstep.
func (p *Poller) Upsert(addr CapAddr, verb string, interval, jitter time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	key := pollKey{addr: addr, verb: verb}
	if e, ok := p.byKey[key]; ok {
		e.interval = interval
		e.jitter = jitter
		e.next = time.Now().Add(p.jittered(jitter))
		heap.Fix(&p.heap, e.index)
	} else {
		e := &pollEntry{
			key:      key,
			interval: interval,
			jitter:   jitter,
			next:     time.Now().Add(p.jittered(jitter)),
		}
		p.byKey[key] = e
		heap.Push(&p.heap, e)
	}
	p.mu.Unlock()
	p.kick()
}

// Remove drops every schedule addressed to addr.
func (p *Poller) Remove(addr CapAddr) {
	p.mu.Lock()
	for key, e := range p.byKey {
		if key.addr == addr {
			heap.Remove(&p.heap, e.index)
			delete(p.byKey, key)
		}
	}
	p.mu.Unlock()
	p.kick()
}

func (p *Poller) jittered(jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return 0
	}
	return time.Duration(p.rng.Int63n(int64(jitter) + 1))
}

func (p *Poller) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx ends.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		p.mu.Lock()
		var wait time.Duration
		if len(p.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(p.heap[0].next)
		}
		p.mu.Unlock()

		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-timer.C:
			p.fireDue()
		}
	}
}

func (p *Poller) fireDue() {
	now := time.Now()
	p.mu.Lock()
	var due []PollReq
	for len(p.heap) > 0 && !p.heap[0].next.After(now) {
		e := p.heap[0]
		due = append(due, PollReq{Addr: e.key.addr, Verb: e.key.verb})
		e.next = now.Add(e.interval + p.jittered(e.jitter))
		heap.Fix(&p.heap, 0)
	}
	p.mu.Unlock()

	for _, req := range due {
		select {
		case p.out <- req:
		default:
		}
	}
}
