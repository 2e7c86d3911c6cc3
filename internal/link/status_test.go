package link

import (
	"sync"
	"testing"
)

func TestStatusCacheInitialize(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Initialize("dev-1")

	snap, ok := c.Read("dev-1")
	if !ok {
		t.Fatal("Read() after Initialize() found nothing")
	}
	for _, ch := range testChannels {
		v, present := snap[ch]
		if !present {
			t.Errorf("channel %s missing", ch)
		}
		if v != nil {
			t.Errorf("channel %s = %q, want unknown", ch, *v)
		}
	}
}

func TestStatusCacheInitializeResetsValues(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Initialize("dev-1")
	c.Update("dev-1", map[string]*string{"A": strPtr("on"), "X": strPtr("1")})

	c.Initialize("dev-1")

	snap, _ := c.Read("dev-1")
	if v, ok := snap.Value("A"); ok {
		t.Errorf("A = %q after re-Initialize(); want unknown", v)
	}
	if _, present := snap["X"]; present {
		t.Error("unconfigured channel X survived re-Initialize()")
	}
	if len(snap) != len(testChannels) {
		t.Errorf("len(snapshot) = %d, want %d", len(snap), len(testChannels))
	}
}

func TestStatusCacheUpdatePartial(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Initialize("dev-1")
	c.Update("dev-1", map[string]*string{"A": strPtr("on"), "B": strPtr("off")})

	got := c.Update("dev-1", map[string]*string{"B": strPtr("on")})

	tests := []struct {
		channel string
		want    string
		known   bool
	}{
		{"A", "on", true},
		{"B", "on", true},
		{"C", "", false},
	}
	for _, tt := range tests {
		v, ok := got.Value(tt.channel)
		if ok != tt.known || v != tt.want {
			t.Errorf("%s = %q (known %v), want %q (known %v)", tt.channel, v, ok, tt.want, tt.known)
		}
	}
}

func TestStatusCacheUpdateNullMarksUnknown(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Update("dev-1", map[string]*string{"A": strPtr("on")})
	c.Update("dev-1", map[string]*string{"A": nil})

	snap, _ := c.Read("dev-1")
	if _, ok := snap.Value("A"); ok {
		t.Error("A still known after null update")
	}
}

func TestStatusCacheReadReturnsCopy(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Initialize("dev-1")

	snap, _ := c.Read("dev-1")
	snap["A"] = strPtr("tampered")

	again, _ := c.Read("dev-1")
	if _, ok := again.Value("A"); ok {
		t.Error("mutating a read snapshot changed the cache")
	}
}

func TestStatusCacheUnknownDevice(t *testing.T) {
	c := NewStatusCache(testChannels)
	if _, ok := c.Read("nope"); ok {
		t.Error("Read() found a device that never connected")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

// A reader must see either none or all of an update, never a mix.
func TestStatusCacheUpdateIsAtomic(t *testing.T) {
	c := NewStatusCache(testChannels)
	c.Initialize("dev-1")

	on := map[string]*string{"A": strPtr("on"), "B": strPtr("on"), "C": strPtr("on")}
	off := map[string]*string{"A": strPtr("off"), "B": strPtr("off"), "C": strPtr("off")}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				c.Update("dev-1", on)
			} else {
				c.Update("dev-1", off)
			}
		}
	}()

	for range 2000 {
		snap, _ := c.Read("dev-1")
		a, aok := snap.Value("A")
		b, _ := snap.Value("B")
		cv, _ := snap.Value("C")
		if aok && (a != b || b != cv) {
			close(stop)
			wg.Wait()
			t.Fatalf("observed partial update: A=%s B=%s C=%s", a, b, cv)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSnapshotChannelsSorted(t *testing.T) {
	s := Snapshot{"C": nil, "A": nil, "B": nil}
	got := s.Channels()
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("Channels() = %v", got)
	}
}
