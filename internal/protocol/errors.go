package protocol

import "errors"

var (
	// ErrMalformedHeader is returned when fewer than HeaderSize bytes are available.
	ErrMalformedHeader = errors.New("protocol: malformed header")

	// ErrMalformedPayload is returned when a payload is shorter than its
	// declared length or than the layout its kind requires.
	ErrMalformedPayload = errors.New("protocol: malformed payload")

	// ErrUnknownCommand is returned when a command name is not in the name table.
	ErrUnknownCommand = errors.New("protocol: unknown command")
)
