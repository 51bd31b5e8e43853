package core

import "errors"

// Frame is a raw encoded envelope.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; Close must be safe to call more than once.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
