// Package eventbus is the publish/subscribe hub connecting navigation,
// state, and rendering. Listener invocation is synchronous and ordered by
// descending priority; a failing listener never prevents the others from
// running and never surfaces to the emitter as a panic.
package eventbus

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventError carries collected listener failures for an emit.
const EventError = "content:error"

// defaultMaxListeners is a soft cap per event; exceeding it logs a
// warning but still registers the listener.
const defaultMaxListeners = 50

// Handler is a listener callback.
type Handler func(data any)

// ListenerError describes one failed listener during an emit.
type ListenerError struct {
	Event      string
	ListenerID string
	Err        error
}

func (e ListenerError) Error() string {
	return fmt.Sprintf("listener %s for %q: %v", e.ListenerID, e.Event, e.Err)
}

type listener struct {
	id       string
	fn       Handler
	priority int
	seq      int
	once     bool
}

// Bus is a synchronous event bus. Safe for concurrent use.
type Bus struct {
	mu           sync.Mutex
	listeners    map[string][]*listener
	seq          int
	maxListeners int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		listeners:    make(map[string][]*listener),
		maxListeners: defaultMaxListeners,
	}
}

// Option configures a listener registration.
type Option func(*listener)

// WithPriority sets the listener priority. Higher priorities run first;
// equal priorities run in registration order.
func WithPriority(p int) Option {
	return func(l *listener) { l.priority = p }
}

// On registers a listener and returns its id.
func (b *Bus) On(event string, fn Handler, opts ...Option) string {
	l := &listener{id: uuid.NewString(), fn: fn}
	for _, opt := range opts {
		opt(l)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	l.seq = b.seq
	b.seq++

	if len(b.listeners[event]) >= b.maxListeners {
		log.Printf("event %q has %d listeners, possible leak", event, len(b.listeners[event]))
	}
	b.listeners[event] = append(b.listeners[event], l)
	return l.id
}

// Once registers a listener that is deregistered after its first
// invocation. The removal tracks the internal wrapper, so the caller can
// reuse the same function elsewhere without affecting it.
func (b *Bus) Once(event string, fn Handler, opts ...Option) string {
	id := b.On(event, fn, opts...)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners[event] {
		if l.id == id {
			l.once = true
			break
		}
	}
	return id
}

// Off removes the listener with the given id. When the event's listener
// list empties, the event key is deleted so ListenerCount reports 0.
func (b *Bus) Off(event, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(event, id)
}

func (b *Bus) removeLocked(event, id string) bool {
	ls := b.listeners[event]
	for i, l := range ls {
		if l.id == id {
			b.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			if len(b.listeners[event]) == 0 {
				delete(b.listeners, event)
			}
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// EmitOption configures a single emit.
type EmitOption func(*emitConfig)

type emitConfig struct {
	warnIfNoListeners bool
	stopOnError       bool
}

// WarnIfNoListeners logs when an emit finds no listeners.
func WarnIfNoListeners() EmitOption {
	return func(c *emitConfig) { c.warnIfNoListeners = true }
}

// StopOnError aborts the listener chain after the first failure.
func StopOnError() EmitOption {
	return func(c *emitConfig) { c.stopOnError = true }
}

// Emit invokes all listeners for event synchronously in priority order.
// Listener panics are isolated, collected, and re-emitted on EventError.
// It returns true iff every listener completed without failing.
func (b *Bus) Emit(event string, data any, opts ...EmitOption) bool {
	var cfg emitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	ls := b.listeners[event]
	if len(ls) == 0 {
		b.mu.Unlock()
		if cfg.warnIfNoListeners {
			log.Printf("emit %q: no listeners", event)
		}
		return true
	}

	ordered := make([]*listener, len(ls))
	copy(ordered, ls)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority > ordered[j].priority
		}
		return ordered[i].seq < ordered[j].seq
	})
	// Deregister once-listeners before invoking so a re-entrant emit
	// cannot fire them twice.
	for _, l := range ordered {
		if l.once {
			b.removeLocked(event, l.id)
		}
	}
	b.mu.Unlock()

	var errs []ListenerError
	for _, l := range ordered {
		if err := b.invoke(l, data); err != nil {
			errs = append(errs, ListenerError{Event: event, ListenerID: l.id, Err: err})
			if cfg.stopOnError {
				break
			}
		}
	}

	if len(errs) > 0 {
		if event != EventError {
			b.Emit(EventError, errs)
		}
		return false
	}
	return true
}

func (b *Bus) invoke(l *listener, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
			log.Printf("listener %s panicked: %v", l.id, r)
		}
	}()
	l.fn(data)
	return nil
}

// WaitFor blocks until event is emitted or the timeout elapses. The
// internal listener is deregistered on both paths.
func (b *Bus) WaitFor(event string, timeout time.Duration) (any, error) {
	ch := make(chan any, 1)
	var once sync.Once
	id := b.Once(event, func(data any) {
		once.Do(func() { ch <- data })
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-ch:
		return data, nil
	case <-timer.C:
		b.Off(event, id)
		return nil, fmt.Errorf("timed out waiting for %q after %s", event, timeout)
	}
}
