package trigger

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTriggerFiresOnce(t *testing.T) {
	calls := 0
	tr := New(func() { calls++ })

	if !tr.Armed() {
		t.Fatal("expected trigger to be armed after New")
	}

	if !tr.Fire() {
		t.Error("first Fire should report true")
	}
	if tr.Fire() {
		t.Error("second Fire should report false")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if tr.Armed() {
		t.Error("expected trigger to be disarmed after firing")
	}
}

func TestTriggerDisarmedIsNoop(t *testing.T) {
	tests := []struct {
		name string
		tr   *Trigger
	}{
		{name: "zero_value", tr: &Trigger{}},
		{name: "nil_callback", tr: New(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tr.Fire() {
				t.Error("disarmed trigger should not fire")
			}
		})
	}
}

func TestTriggerRearm(t *testing.T) {
	var order []string
	tr := New(func() { order = append(order, "first") })
	tr.Fire()

	tr.Arm(func() { order = append(order, "second") })
	tr.Fire()
	tr.Fire()

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected call order: %v", order)
	}
}

func TestTriggerCallbackMayRearm(t *testing.T) {
	var tr *Trigger
	calls := 0
	tr = New(func() {
		calls++
		tr.Arm(func() { calls++ })
	})

	tr.Fire()
	tr.Fire()
	tr.Fire()

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestTriggerConcurrentFire(t *testing.T) {
	var calls atomic.Int32
	tr := New(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Fire()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 call, got %d", got)
	}
}
