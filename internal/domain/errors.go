package domain

import "errors"

// Connection and command failures callers are expected to branch on with
// errors.Is. Call sites wrap these with fmt.Errorf("%w: detail", ...) so the
// sentinel stays matchable while the message carries specifics.
var (
	// ErrSerialPortNotFound is returned when a serial spec resolves to no
	// enumerated port, either because the explicit path is gone or because
	// autodetection found nothing.
	ErrSerialPortNotFound = errors.New("serial port not found")

	// ErrTCPHostMissing is returned for a tcp spec with an empty host.
	ErrTCPHostMissing = errors.New("tcp host not configured")

	// ErrDeviceUnavailable is returned when the radio client layer itself
	// cannot be constructed, as opposed to a reachable-but-failing device.
	ErrDeviceUnavailable = errors.New("device client unavailable")

	// ErrSerialBackendUnavailable is returned when the OS serial port
	// listing backend fails.
	ErrSerialBackendUnavailable = errors.New("serial enumeration unavailable")

	// ErrConnectionFailed wraps any lower-level open or handshake error
	// (permission, timeout, refused).
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidConnectionKind is returned for specs with an unknown kind.
	ErrInvalidConnectionKind = errors.New("invalid connection kind")

	// ErrUnsupportedOperation is returned when the connected device client
	// does not expose the requested command capability.
	ErrUnsupportedOperation = errors.New("operation not supported by device")

	// ErrInvalidArgument is returned for command arguments rejected before
	// any transport work, such as blank message text.
	ErrInvalidArgument = errors.New("invalid argument")
)
