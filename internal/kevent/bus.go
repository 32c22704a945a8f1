package kevent

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for kernel lifecycle events.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an event bus with its own dispatcher.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to all subscribers of its concrete type. The generic
// dispatcher keys on the concrete type, hence the switch.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ProcCreated:
		event.Publish(b.dispatcher, e)
	case ProcExited:
		event.Publish(b.dispatcher, e)
	case ProcAdopted:
		event.Publish(b.dispatcher, e)
	case ProcReaped:
		event.Publish(b.dispatcher, e)
	case ProcCancelled:
		event.Publish(b.dispatcher, e)
	case Shutdown:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler; the handler's parameter type selects
// which events it receives. The returned function unsubscribes.
// Usage: unsub := bus.Subscribe(func(e kevent.ProcExited) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcCreated):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcExited):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcAdopted):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcReaped):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcCancelled):
		return event.Subscribe(b.dispatcher, h)
	case func(Shutdown):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeAll registers one handler for every lifecycle event type and
// returns a single unsubscribe function.
func (b *Bus) SubscribeAll(handler func(Event)) func() {
	unsubs := []func(){
		b.Subscribe(func(e ProcCreated) { handler(e) }),
		b.Subscribe(func(e ProcExited) { handler(e) }),
		b.Subscribe(func(e ProcAdopted) { handler(e) }),
		b.Subscribe(func(e ProcReaped) { handler(e) }),
		b.Subscribe(func(e ProcCancelled) { handler(e) }),
		b.Subscribe(func(e Shutdown) { handler(e) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
