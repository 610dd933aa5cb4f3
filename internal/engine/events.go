package engine

// EventKind distinguishes the two outbound signals of spec.md §6.
type EventKind int

const (
	// LoopDataUpdated fires on every settled tick, suppressed while the
	// engine is waiting out the post-sentry delay.
	LoopDataUpdated EventKind = iota
	// LoopRunning fires immediately on PumpStatusUpdated, before the
	// 11-second sentry delay elapses.
	LoopRunning
)

// observerBus fans EventKind values out to subscribers registered via
// Subscribe and released via the returned cancel function, satisfying
// the "observer lifetime" design note of spec.md §9: subscriptions must
// be released when the engine is destroyed.
type observerBus struct {
	subscribers map[int]chan<- EventKind
	nextID      int
}

func newObserverBus() *observerBus {
	return &observerBus{subscribers: make(map[int]chan<- EventKind)}
}

// subscribe registers ch to receive events and returns a function that
// unregisters it. Must only be called from the decision queue.
func (b *observerBus) subscribe(ch chan<- EventKind) func() {
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	return func() { delete(b.subscribers, id) }
}

// publish delivers kind to every subscriber without blocking on a full
// channel; a slow observer drops events rather than stalling the
// decision queue.
func (b *observerBus) publish(kind EventKind) {
	for _, ch := range b.subscribers {
		select {
		case ch <- kind:
		default:
		}
	}
}

func (b *observerBus) closeAll() {
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
