package link

import (
	"sort"
	"sync"
)

// Snapshot is the last-known status of one device, keyed by channel label.
// A nil value means the channel's status is unknown; it encodes as JSON null.
type Snapshot map[string]*string

// Clone returns a copy that shares no map with the receiver.
// Values are never mutated in place, so the pointers are shared safely.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Value returns the status of a channel and whether it is known.
func (s Snapshot) Value(channel string) (string, bool) {
	v, ok := s[channel]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Channels returns the channel labels in sorted order.
func (s Snapshot) Channels() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StatusCache holds the last-known Snapshot of every device that has ever connected.
//
// Entries are created on connect and survive disconnects. Each Update is
// applied under one write lock, so a concurrent Read observes either the
// whole update or none of it.
type StatusCache struct {
	channels []string
	entries  map[string]Snapshot
	mu       sync.RWMutex
}

// NewStatusCache creates a cache whose snapshots start with the given channels unknown.
func NewStatusCache(channels []string) *StatusCache {
	return &StatusCache{
		channels: append([]string(nil), channels...),
		entries:  make(map[string]Snapshot),
	}
}

// Initialize starts a fresh snapshot for deviceID with every configured
// channel unknown. Values left over from an earlier connection are dropped.
func (c *StatusCache) Initialize(deviceID string) {
	snap := make(Snapshot, len(c.channels))
	for _, ch := range c.channels {
		snap[ch] = nil
	}

	c.mu.Lock()
	c.entries[deviceID] = snap
	c.mu.Unlock()
}

func (c *StatusCache) ensureLocked(deviceID string) Snapshot {
	snap, ok := c.entries[deviceID]
	if !ok {
		snap = make(Snapshot, len(c.channels))
		c.entries[deviceID] = snap
	}
	for _, ch := range c.channels {
		if _, present := snap[ch]; !present {
			snap[ch] = nil
		}
	}
	return snap
}

// Update replaces the channels present in values and leaves the others untouched.
// Channels a device reports beyond the configured set are stored too.
// It returns a copy of the snapshot as it stands after the update.
func (c *StatusCache) Update(deviceID string, values map[string]*string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.ensureLocked(deviceID)
	for ch, v := range values {
		snap[ch] = v
	}
	return snap.Clone()
}

// Read returns a copy of the device's snapshot, or false if it never connected.
func (c *StatusCache) Read(deviceID string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.entries[deviceID]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Len returns the number of devices with a snapshot.
func (c *StatusCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
