// Package simnet simulates a cluster of training workers connected by a
// network with configurable latency and bandwidth. Time is virtual: worker
// goroutines only make progress through a shared event loop, so large
// multi-rank topologies can be exercised deterministically and instantly
// in tests and benchmarks.
package simnet

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// A Stream is a uni-directional channel of messages delivered through a
// Loop. A Stream must not be used on more than one Loop.
type Stream struct {
	loop    *Loop
	pending []interface{}
}

// An Event is a message received on some Stream.
type Event struct {
	Message interface{}
	Stream  *Stream
}

// A Timer is a single delivery that will happen in the virtual future.
type Timer struct {
	time  float64
	event *Event
}

// Time gets the virtual time at which the timer fires. If the loop's clock
// is below this value, the timer has definitely not fired yet.
func (t *Timer) Time() float64 {
	return t.time
}

// A Handle is one goroutine's connection to a Loop. Handles must not be
// shared between goroutines.
type Handle struct {
	*Loop

	// Empty while the goroutine is not polling.
	pollStreams []*Stream
	pollChan    chan<- *Event
}

// Poll blocks until an event arrives on any of the given streams.
func (h *Handle) Poll(streams ...*Stream) *Event {
	ch := make(chan *Event, 1)
	h.modifyHandles(func() {
		if h.pollStreams != nil {
			panic("Handle is shared between goroutines")
		}
		for _, stream := range streams {
			if len(stream.pending) > 0 {
				msg := stream.pending[0]
				essentials.OrderedDelete(&stream.pending, 0)
				ch <- &Event{Message: msg, Stream: stream}
				return
			}
		}
		h.pollStreams = streams
		h.pollChan = ch
	})
	return <-ch
}

// Schedule arranges for msg to arrive on stream after delay units of
// virtual time.
func (h *Handle) Schedule(stream *Stream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.Loop {
		panic("Stream belongs to a different Loop")
	}
	var timer *Timer
	h.modify(func() {
		timer = &Timer{
			time:  h.time + delay,
			event: &Event{Message: msg, Stream: stream},
		}
		if math.IsInf(timer.time, 0) || math.IsNaN(timer.time) {
			panic(fmt.Sprintf("invalid deadline: %f", timer.time))
		}
		h.timers = append(h.timers, timer)
	})
	return timer
}

// Cancel stops a timer if it is still scheduled.
func (h *Handle) Cancel(t *Timer) {
	h.modify(func() {
		for i, timer := range h.timers {
			if timer == t {
				essentials.UnorderedDelete(&h.timers, i)
			}
		}
	})
}

// Sleep blocks for a span of virtual time. Workers use this to model
// local computation such as a gradient reduction.
func (h *Handle) Sleep(delay float64) {
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	h.Poll(stream)
}

// A Loop is the global scheduler for a simulated worker group.
//
// Every goroutine that touches the Loop must be started with Loop.Go().
// The loop only advances the virtual clock when all active goroutines are
// polling, so workers never need to reason about real time.
type Loop struct {
	lock    sync.Mutex
	timers  []*Timer
	handles []*Handle

	time float64

	running  bool
	notifyCh chan struct{}
}

// NewLoop creates a Loop with its clock at 0.
func NewLoop() *Loop {
	return &Loop{notifyCh: make(chan struct{}, 1)}
}

// Stream creates a new Stream on the loop.
func (l *Loop) Stream() *Stream {
	return &Stream{loop: l}
}

// Go starts f in its own goroutine with a fresh Handle.
func (l *Loop) Go(f func(h *Handle)) {
	h := &Handle{Loop: l}
	l.lock.Lock()
	l.handles = append(l.handles, h)
	l.lock.Unlock()
	go func() {
		f(h)
		l.modifyHandles(func() {
			for i, handle := range l.handles {
				if handle == h {
					essentials.UnorderedDelete(&l.handles, i)
					return
				}
			}
			panic("cannot free handle that does not exist")
		})
	}()
}

// Run drives the loop until every handle has exited.
//
// It must not be called from more than one goroutine at once. It returns
// an error if the workers deadlock, which is exactly the failure mode of a
// collective operation that some rank never reached.
func (l *Loop) Run() error {
	l.lock.Lock()
	if l.running {
		l.lock.Unlock()
		panic("Loop is already running")
	}
	l.running = true
	l.lock.Unlock()

	defer func() {
		l.lock.Lock()
		l.running = false
		l.lock.Unlock()
	}()

	for range l.notifyCh {
		if shouldContinue, err := l.step(); !shouldContinue {
			return err
		}
	}

	panic("unreachable")
}

// MustRun is like Run, but panics on deadlock.
func (l *Loop) MustRun() {
	if err := l.Run(); err != nil {
		panic(err)
	}
}

// Time gets the current virtual time.
func (l *Loop) Time() float64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.time
}

// modify runs f with the loop state locked, assuming no handle states
// change (so no scheduling decisions can be affected).
func (l *Loop) modify(f func()) {
	l.lock.Lock()
	defer l.lock.Unlock()
	f()
}

// modifyHandles is like modify, but wakes the scheduler because handle
// states may have changed.
func (l *Loop) modifyHandles(f func()) {
	l.lock.Lock()
	defer func() {
		l.lock.Unlock()
		select {
		case l.notifyCh <- struct{}{}:
		default:
		}
	}()
	f()
}

// step delivers the next timer event, if any. The first return value is
// false when the loop cannot make further progress; the error reports a
// deadlock if that is the reason.
func (l *Loop) step() (bool, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if len(l.handles) == 0 {
		return false, nil
	}

	for _, h := range l.handles {
		if len(h.pollStreams) == 0 {
			// Some goroutine is still computing in real time.
			return true, nil
		}
	}

	for len(l.timers) > 0 {
		// Break ties between equal deadlines randomly so that racy
		// delivery orders are actually exercised.
		indices := rand.Perm(len(l.timers))

		minTimerIdx := indices[0]
		for _, i := range indices[1:] {
			if l.timers[i].time < l.timers[minTimerIdx].time {
				minTimerIdx = i
			}
		}
		timer := l.timers[minTimerIdx]

		essentials.UnorderedDelete(&l.timers, minTimerIdx)
		l.time = math.Max(l.time, timer.time)
		if l.deliver(timer.event) {
			return true, nil
		}
	}

	return false, errors.New("deadlock: all handles are polling")
}

func (l *Loop) deliver(event *Event) bool {
	// Receivers are also shuffled to avoid a deterministic delivery order.
	indices := rand.Perm(len(l.handles))
	for _, i := range indices {
		h := l.handles[i]
		for _, stream := range h.pollStreams {
			if stream == event.Stream {
				h.pollChan <- event
				h.pollChan = nil
				h.pollStreams = nil
				return true
			}
		}
	}
	event.Stream.pending = append(event.Stream.pending, event.Message)
	return false
}
