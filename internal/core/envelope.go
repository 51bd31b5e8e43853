package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dkeye/relay/internal/domain"
)

var ErrBadEnvelope = errors.New("bad envelope")

// Kind is the closed set of envelope types the relay understands.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSessionCreate
	KindSessionCreated
	KindSessionJoin
	KindSessionState
	KindSessionDestroyed
	KindUpdateState
)

var kindNames = [...]string{
	KindUnknown:          "unknown",
	KindSessionCreate:    "session-create",
	KindSessionCreated:   "session-created",
	KindSessionJoin:      "session-join",
	KindSessionState:     "session-state",
	KindSessionDestroyed: "session-destroyed",
	KindUpdateState:      "update-state",
}

// ParseKind maps a wire type to a Kind. Anything unrecognized is KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if k != int(KindUnknown) && name == s {
			return Kind(k)
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Envelope is one decoded inbound frame. Type keeps the raw wire name so
// unknown kinds can still be reported.
type Envelope struct {
	Kind Kind
	Type string
	Data json.RawMessage
}

// DecodeEnvelope parses one inbound text frame. Frames that are not valid
// UTF-8 are rejected, since relaying them would fail every receiving peer.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if !utf8.Valid(data) {
		return Envelope{}, fmt.Errorf("%w: invalid utf-8", ErrBadEnvelope)
	}
	var raw struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	return Envelope{Kind: ParseKind(raw.Type), Type: raw.Type, Data: raw.Data}, nil
}

// EncodeEnvelope renders {type, data?}. A nil data omits the field.
func EncodeEnvelope(k Kind, data any) (Frame, error) {
	if k == KindUnknown {
		return nil, fmt.Errorf("%w: cannot encode unknown kind", ErrBadEnvelope)
	}
	msg := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{
		Type: k.String(),
		Data: data,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", k, err)
	}
	return b, nil
}

type SessionCreated struct {
	ID domain.SessionID `json:"id"`
}

type SessionJoin struct {
	ID domain.SessionID `json:"id"`
}

// SessionState is sent to each member; Current is the recipient itself.
type SessionState struct {
	Current domain.ClientID   `json:"current"`
	Creator domain.ClientID   `json:"creator"`
	Peers   []domain.ClientID `json:"peers"`
}

// PeerState wraps a relayed update-state payload with its sender.
type PeerState struct {
	State json.RawMessage `json:"state"`
	Peer  domain.ClientID `json:"peer"`
}

type Ended struct {
	Ended int64 `json:"ended"`
}
