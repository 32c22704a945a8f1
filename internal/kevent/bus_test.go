package kevent

import (
	"sync"
	"testing"
	"time"
)

func TestPublishReachesTypedSubscriber(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var got []ProcExited
	done := make(chan struct{}, 1)
	unsub := bus.Subscribe(func(e ProcExited) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})
	defer unsub()

	bus.Publish(ProcExited{PID: 3, Name: "alpha", Status: 7})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("subscriber never received the event")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].PID != 3 || got[0].Status != 7 {
		t.Fatalf("received %+v, want one ProcExited{PID:3 Status:7}", got)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := New()

	events := make(chan Event, 8)
	unsub := bus.SubscribeAll(func(e Event) { events <- e })
	defer unsub()

	bus.Publish(ProcCreated{PID: 2, PPID: 1, Name: "a"})
	bus.Publish(Shutdown{InitStatus: 0})

	seen := map[uint32]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			seen[e.Type()] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("missing event %d of 2 (saw %v)", i+1, seen)
		}
	}
	if !seen[TypeProcCreated] || !seen[TypeShutdown] {
		t.Fatalf("saw %v, want created and shutdown", seen)
	}
}

func TestUnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(int) {})
	unsub()
}
