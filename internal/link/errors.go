package link

import "errors"

// Sentinel errors for the device link.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, link.ErrDeviceUnknown) {
//	    // never connected; nothing to report
//	}
var (
	// ErrProtocolViolation is returned when the first frame is not a valid connect message.
	ErrProtocolViolation = errors.New("link: protocol violation")

	// ErrMalformedFrame is returned when a frame is not a parsable JSON object.
	ErrMalformedFrame = errors.New("link: malformed frame")

	// ErrTransportClosed is returned when the underlying connection fails or closes abnormally.
	ErrTransportClosed = errors.New("link: transport closed")

	// ErrDeviceUnknown is returned when a device has never connected, so no status exists.
	ErrDeviceUnknown = errors.New("link: device has never connected")

	// ErrDeliveryFailed is returned when a write to a live handle fails.
	// The relay demotes it to a not-connected result.
	ErrDeliveryFailed = errors.New("link: delivery failed")

	// ErrInvalidDeviceID is returned for an empty device identity.
	ErrInvalidDeviceID = errors.New("link: invalid device id")

	// ErrInvalidCommand is returned when a command names an unknown channel or an empty action.
	ErrInvalidCommand = errors.New("link: invalid command")

	// ErrHandleClosed is returned when writing to a handle that has already been closed.
	ErrHandleClosed = errors.New("link: handle closed")
)
