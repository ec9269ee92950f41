package space

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Event is one unit of dispatcher work: either an inbound frame for a
// session or the notice that its connection closed.
type Event struct {
	Session *Session
	Frame   []byte
	Close   bool
}

// Dispatcher serializes all session handling onto a single goroutine. Each
// event, including any broadcast fan-out it triggers, runs to completion
// before the next is taken, so the registry's membership and every roster
// snapshot stay atomic per handler turn without per-room locking. Events
// from one connection keep their arrival order; no order is guaranteed
// between connections.
//
// Dispatcher implements the server Service interface.
type Dispatcher struct {
	events chan Event
	quit   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	running  atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with the given event buffer capacity.
//
// Precondition: logger must be non-nil.
func NewDispatcher(buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		events: make(chan Event, buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Dispatch enqueues an inbound frame for the given session. Blocks when the
// event buffer is full, which back-pressures only the enqueuing read pump.
// After Stop the frame is discarded.
//
// Precondition: sess must be non-nil.
func (d *Dispatcher) Dispatch(sess *Session, frame []byte) {
	select {
	case d.events <- Event{Session: sess, Frame: frame}:
	case <-d.quit:
	}
}

// DispatchClose enqueues the connection-close notice for the given session
// so its destroy transition runs inside a handler turn. After Stop the
// destroy runs on the caller's goroutine instead; it must never be lost.
//
// Precondition: sess must be non-nil.
func (d *Dispatcher) DispatchClose(sess *Session) {
	// A stopped dispatcher may never drain another event, so the quit check
	// has to win before the enqueue is even attempted.
	select {
	case <-d.quit:
		sess.Destroy()
		return
	default:
	}

	select {
	case d.events <- Event{Session: sess, Close: true}:
		// A Stop racing this enqueue is safe: the loop drains the event
		// channel after observing quit, and Stop waits for that drain.
	case <-d.quit:
		sess.Destroy()
	}
}

// Start runs the dispatch loop. It blocks until Stop is called.
//
// Postcondition: Events enqueued before Stop have been handled.
func (d *Dispatcher) Start() error {
	d.running.Store(true)
	defer close(d.done)

	d.logger.Info("dispatcher started")
	for {
		select {
		case ev := <-d.events:
			d.handle(ev)
		case <-d.quit:
			// Drain whatever made it in before the quit was observed.
			for {
				select {
				case ev := <-d.events:
					d.handle(ev)
				default:
					d.logger.Info("dispatcher stopped")
					return nil
				}
			}
		}
	}
}

// IsRunning returns whether the dispatch loop has started.
func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// Stop terminates the dispatch loop and waits for it to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
	if d.running.Load() {
		<-d.done
	}
}

func (d *Dispatcher) handle(ev Event) {
	if ev.Session == nil {
		return
	}
	if ev.Close {
		ev.Session.Destroy()
		return
	}
	ev.Session.HandleFrame(ev.Frame)
}
