// Package link holds the live device links of PhaseLink Core.
//
// Each remote controller keeps one persistent WebSocket to the server and
// reports per-phase status over it. This package owns that connection state
// and everything that reads or writes through it:
//
//	┌──────────────┐   connect / status push   ┌──────────────────────────┐
//	│    device    │ ─────────────────────────▶│ Manager (lifecycle loop) │
//	│ (controller) │ ◀─────────────┐           └───────┬──────────┬───────┘
//	└──────────────┘   command /   │                   │ Register │ Initialize/Update
//	                   refresh     │           ┌───────▼──┐  ┌────▼────────┐
//	                               └───────────│ Registry │  │ StatusCache │
//	                                           └───▲──────┘  └────▲────────┘
//	                                               │ Lookup       │ Read
//	                                     ┌─────────┴──┐   ┌───────┴────────┐
//	      HTTP handlers ────────────────▶│   Relay    │   │ StatusService  │
//	                                     └────────────┘   └────────────────┘
//
// # Lifecycle
//
// A connection moves AwaitingHandshake → Connected → Terminated. The first
// frame must be {"type":"connect","device_id":"..."}; anything else closes
// the socket with a policy-violation code. While connected, frames of the
// form {"status":{"A":"on",...}} update the cache and every other object is
// ignored. A read error, a close or an unparsable frame terminates.
//
// # Replacement
//
// The last connect for an identity wins. A superseded handle is inert: its
// Unregister is a no-op because removal compares handle identity, so a slow
// teardown of an old socket can never evict the newer one. Pushes still read
// from it are dropped, and every handshake starts from an all-unknown
// snapshot.
//
// # Commands and status reads
//
// Relay.Send is fire-and-forget: it only reports whether the bytes reached a
// live transport. StatusService.GetStatus answers from the cache and sends a
// refresh request to the device on a detached goroutine, so replies never
// have to be matched against unsolicited pushes on the same socket.
//
// Thread Safety: all exported types are safe for concurrent use.
package link
