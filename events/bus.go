// Package events provides the typed publish/subscribe bus used by the chart
// sync registry. Each registry owns its own Bus; there is no global bus.
package events

import "sync"

// Event names exposed to UI consumers and the notification bridge.
const (
	ChartRegistered    = "chart-registered"
	ChartUpdate        = "chart-update"
	ChartSynced        = "chart-synced"
	ChartUnregistered  = "chart-unregistered"
	SyncError          = "sync-error"
	AspectAlert        = "aspect-alert"
	AspectEvent        = "aspect-event"
	TransitUpdate      = "transit-update"
	ConnectionLost     = "connection-lost"
	ConnectionRestored = "connection-restored"
	AllChartsRefreshed = "all-charts-refreshed"
)

// Names lists every event the bus emits, in a stable order. Used by the SSE
// bridge to subscribe across the board.
var Names = []string{
	ChartRegistered, ChartUpdate, ChartSynced, ChartUnregistered,
	SyncError, AspectAlert, AspectEvent, TransitUpdate,
	ConnectionLost, ConnectionRestored, AllChartsRefreshed,
}

// Handler receives an event payload. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(payload any)

type subscription struct {
	fn Handler
}

// Bus is a synchronous fan-out pub/sub mechanism. Emission calls every
// current subscriber for the event name in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers a handler for one event name and returns a function
// that removes it. Subscribing on a closed bus is a no-op.
func (b *Bus) Subscribe(event string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	sub := &subscription{fn: fn}
	b.subs[event] = append(b.subs[event], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s == sub {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the payload to all current subscribers of the event name.
// The subscriber list is snapshotted under the lock and handlers run
// outside it, so a handler may subscribe or unsubscribe without deadlock.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	snapshot := make([]*subscription, len(b.subs[event]))
	copy(snapshot, b.subs[event])
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.fn(payload)
	}
}

// Close removes every listener and rejects further subscriptions. Safe to
// call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*subscription)
}
