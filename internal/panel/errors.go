package panel

import "errors"

// Domain errors for the panel driver.
var (
	// ErrUnsupportedKeymap is returned at construction time when the keymap
	// variant is not one of the two supported regions.
	ErrUnsupportedKeymap = errors.New("panel: unsupported keymap variant")

	// ErrAlreadyConnected is returned by Connect when a connection has
	// already been requested.
	ErrAlreadyConnected = errors.New("panel: connection already active")

	// ErrNotConnected is returned when an operation requires an active
	// session but none exists.
	ErrNotConnected = errors.New("panel: not connected")

	// ErrInvalidQuery is returned by Status for an unknown category, an
	// out-of-range id, or an unknown topic.
	ErrInvalidQuery = errors.New("panel: invalid status query")

	// ErrUnknownCommand is returned by Send when the command is neither a
	// 4/6-digit user code, a keymap entry, nor the setup token.
	ErrUnknownCommand = errors.New("panel: unknown command")

	// ErrCommandOverflow is returned when the session command queue is
	// full. It is fatal to the session, like a write fault.
	ErrCommandOverflow = errors.New("panel: command queue overflow")

	// ErrLineOverflow reports that the raw-line queue filled up because the
	// processor stalled. It is fatal to the session: a discarded line is a
	// state transition the device bank would never see, so the session is
	// torn down and the reconnect's full poll restores consistency.
	ErrLineOverflow = errors.New("panel: line queue overflow")
)
