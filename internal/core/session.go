package core

import (
	"errors"
	"slices"

	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyAttached = errors.New("client already attached to a session")
	ErrOwnerConflict   = errors.New("session owner conflict")
)

// SessionInfo is a read-only view for APIs (no transport fields).
type SessionInfo struct {
	ID      domain.SessionID  `json:"id"`
	Owner   domain.ClientID   `json:"owner,omitempty"`
	Members []domain.ClientID `json:"members"`
}

// Session is an ordered room of clients. It is not safe for concurrent use;
// the dispatcher loop is its only writer.
type Session struct {
	id       domain.SessionID
	members  []*Client
	hadOwner bool
}

func NewSession(id domain.SessionID) *Session {
	return &Session{id: id}
}

func (s *Session) ID() domain.SessionID { return s.id }
func (s *Session) Len() int             { return len(s.members) }
func (s *Session) IsEmpty() bool        { return len(s.members) == 0 }

// Join appends c. The first join of a session must be its owner and every
// later join must not be.
func (s *Session) Join(c *Client, asOwner bool) error {
	if c.session != nil {
		return ErrAlreadyAttached
	}
	if asOwner && s.hadOwner {
		return ErrOwnerConflict
	}
	if !asOwner && !s.hadOwner {
		return ErrOwnerConflict
	}
	if asOwner {
		s.hadOwner = true
	}
	s.members = append(s.members, c)
	c.attach(s, asOwner)
	log.Debug().Str("module", "core.session").Str("session", string(s.id)).Str("client", string(c.id)).Bool("owner", asOwner).Msg("member joined")
	return nil
}

// Leave removes c and reports whether it was a member.
func (s *Session) Leave(c *Client) bool {
	if c.session != s {
		return false
	}
	for i, m := range s.members {
		if m == c {
			s.members = slices.Delete(s.members, i, i+1)
			break
		}
	}
	c.detach()
	log.Debug().Str("module", "core.session").Str("session", string(s.id)).Str("client", string(c.id)).Int("left", len(s.members)).Msg("member left")
	return true
}

// Owner returns the current owner, absent once the owner has left.
func (s *Session) Owner() (*Client, bool) {
	for _, m := range s.members {
		if m.owner {
			return m, true
		}
	}
	return nil, false
}

// Members returns a copy in join order.
func (s *Session) Members() []*Client {
	out := make([]*Client, len(s.members))
	copy(out, s.members)
	return out
}

func (s *Session) Peers() []domain.ClientID {
	out := make([]domain.ClientID, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.id)
	}
	return out
}

func (s *Session) Info() SessionInfo {
	info := SessionInfo{ID: s.id, Members: s.Peers()}
	if owner, ok := s.Owner(); ok {
		info.Owner = owner.id
	}
	return info
}
