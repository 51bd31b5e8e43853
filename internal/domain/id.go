// Package domain holds client and session identifiers and the generator
// that mints them.
package domain

import (
	"github.com/google/uuid"
)

type (
	ClientID  string
	SessionID string
)

// IDGenerator produces opaque identifiers for clients and sessions.
// Uniqueness is by construction, nothing is checked against live ids.
type IDGenerator func() string

// NewID is the default IDGenerator.
func NewID() string {
	return uuid.NewString()
}

func NewClientID(gen IDGenerator) ClientID {
	if gen == nil {
		gen = NewID
	}
	return ClientID(gen())
}

func NewSessionID(gen IDGenerator) SessionID {
	if gen == nil {
		gen = NewID
	}
	return SessionID(gen())
}
