package eventbus

import (
	"testing"
	"time"
)

func TestEmitInvokesListeners(t *testing.T) {
	bus := New()
	var got []string
	bus.On("test:event", func(data any) {
		got = append(got, data.(string))
	})

	if ok := bus.Emit("test:event", "hello"); !ok {
		t.Fatal("expected emit to succeed")
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("expected [hello], got %v", got)
	}
}

func TestEmitPriorityOrder(t *testing.T) {
	bus := New()
	var order []string
	bus.On("x", func(any) { order = append(order, "low") }, WithPriority(-1))
	bus.On("x", func(any) { order = append(order, "first") })
	bus.On("x", func(any) { order = append(order, "second") })
	bus.On("x", func(any) { order = append(order, "high") }, WithPriority(10))

	bus.Emit("x", nil)

	want := []string{"high", "first", "second", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestOnceFiresOnlyOnce(t *testing.T) {
	bus := New()
	count := 0
	bus.Once("x", func(any) { count++ })

	bus.Emit("x", nil)
	bus.Emit("x", nil)

	if count != 1 {
		t.Errorf("expected 1 invocation, got %d", count)
	}
	if n := bus.ListenerCount("x"); n != 0 {
		t.Errorf("expected 0 listeners after once fired, got %d", n)
	}
}

func TestOnceReentrantEmit(t *testing.T) {
	bus := New()
	count := 0
	bus.Once("x", func(any) {
		count++
		// A listener emitting its own event must not re-fire itself.
		bus.Emit("x", nil)
	})

	bus.Emit("x", nil)

	if count != 1 {
		t.Errorf("expected 1 invocation, got %d", count)
	}
}

func TestOff(t *testing.T) {
	bus := New()
	count := 0
	id := bus.On("x", func(any) { count++ })

	if !bus.Off("x", id) {
		t.Fatal("expected Off to report removal")
	}
	if bus.Off("x", id) {
		t.Error("expected second Off to report false")
	}

	bus.Emit("x", nil)
	if count != 0 {
		t.Errorf("expected removed listener not to fire, got %d", count)
	}
	if n := bus.ListenerCount("x"); n != 0 {
		t.Errorf("expected 0 listeners, got %d", n)
	}
}

func TestOffLeavesOtherListeners(t *testing.T) {
	bus := New()
	var got []string
	id := bus.On("x", func(any) { got = append(got, "a") })
	bus.On("x", func(any) { got = append(got, "b") })

	bus.Off("x", id)
	bus.Emit("x", nil)

	if len(got) != 1 || got[0] != "b" {
		t.Errorf("expected [b], got %v", got)
	}
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	bus := New()
	ran := false
	bus.On("x", func(any) { panic("boom") }, WithPriority(1))
	bus.On("x", func(any) { ran = true })

	var reported []ListenerError
	bus.On(EventError, func(data any) {
		reported = data.([]ListenerError)
	})

	if ok := bus.Emit("x", nil); ok {
		t.Error("expected emit to report failure")
	}
	if !ran {
		t.Error("expected later listener to run despite panic")
	}
	if len(reported) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(reported))
	}
	if reported[0].Event != "x" {
		t.Errorf("expected event x in error, got %s", reported[0].Event)
	}
}

func TestStopOnError(t *testing.T) {
	bus := New()
	ran := false
	bus.On("x", func(any) { panic("boom") }, WithPriority(1))
	bus.On("x", func(any) { ran = true })

	bus.Emit("x", nil, StopOnError())

	if ran {
		t.Error("expected chain to stop after first failure")
	}
}

func TestErrorListenerPanicDoesNotRecurse(t *testing.T) {
	bus := New()
	bus.On("x", func(any) { panic("boom") })
	bus.On(EventError, func(any) { panic("boom again") })

	// Must terminate without stack overflow.
	if ok := bus.Emit("x", nil); ok {
		t.Error("expected emit to report failure")
	}
}

func TestEmitNoListeners(t *testing.T) {
	bus := New()
	if ok := bus.Emit("nothing", nil, WarnIfNoListeners()); !ok {
		t.Error("expected emit with no listeners to succeed")
	}
}

func TestWaitForResolves(t *testing.T) {
	bus := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Emit("ready", "payload")
	}()

	data, err := bus.WaitFor("ready", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.(string) != "payload" {
		t.Errorf("expected payload, got %v", data)
	}
}

func TestWaitForTimeout(t *testing.T) {
	bus := New()
	_, err := bus.WaitFor("never", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if n := bus.ListenerCount("never"); n != 0 {
		t.Errorf("expected timed-out listener to be removed, got %d", n)
	}
}
