package link

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(newFakeConn())

	if prev := r.Register("dev-1", h); prev != nil {
		t.Fatalf("Register() previous = %v, want nil", prev)
	}

	got, ok := r.Lookup("dev-1")
	if !ok || got != h {
		t.Fatalf("Lookup() = %v, %v; want registered handle", got, ok)
	}
	if _, ok := r.Lookup("dev-2"); ok {
		t.Error("Lookup() found an unregistered device")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	first := NewHandle(newFakeConn())
	second := NewHandle(newFakeConn())

	r.Register("dev-1", first)
	if prev := r.Register("dev-1", second); prev != first {
		t.Fatalf("Register() previous = %v, want first handle", prev)
	}

	got, _ := r.Lookup("dev-1")
	if got != second {
		t.Fatal("Lookup() did not return the most recent handle")
	}
	if first.Closed() {
		t.Error("replaced handle was closed by the registry")
	}
}

func TestRegistryGuardedUnregister(t *testing.T) {
	r := NewRegistry()
	stale := NewHandle(newFakeConn())
	current := NewHandle(newFakeConn())

	r.Register("dev-1", stale)
	r.Register("dev-1", current)

	if r.Unregister("dev-1", stale) {
		t.Fatal("Unregister() with stale handle removed the mapping")
	}
	if got, ok := r.Lookup("dev-1"); !ok || got != current {
		t.Fatal("stale Unregister() evicted the current handle")
	}

	if !r.Unregister("dev-1", current) {
		t.Fatal("Unregister() with current handle returned false")
	}
	if _, ok := r.Lookup("dev-1"); ok {
		t.Fatal("device still registered after Unregister()")
	}
	if r.Unregister("dev-1", current) {
		t.Error("second Unregister() returned true")
	}
}

func TestRegistryDeviceIDsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Register(id, NewHandle(newFakeConn()))
	}

	ids := r.DeviceIDs()
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("DeviceIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("DeviceIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("dev-%d", i%5)
			h := NewHandle(newFakeConn())
			r.Register(id, h)
			r.Lookup(id)
			r.Unregister(id, h)
			r.Count()
		}(i)
	}
	wg.Wait()

	if r.Count() > 5 {
		t.Errorf("Count() = %d, want at most 5", r.Count())
	}
}
