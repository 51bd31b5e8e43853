package app

import (
	"errors"
	"sort"

	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrSessionExists = errors.New("session already exists")

// Registry maps session ids to live sessions. It is the only place sessions
// are created or destroyed. Not safe for concurrent use: the dispatcher loop
// is its single owner.
type Registry struct {
	sessions map[domain.SessionID]*core.Session
	metrics  *Metrics
}

func NewRegistry(m *Metrics) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*core.Session),
		metrics:  m,
	}
}

func (r *Registry) Create(id domain.SessionID) (*core.Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s := core.NewSession(id)
	r.sessions[id] = s
	r.metrics.setSessions(len(r.sessions))
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session created")
	return s, nil
}

func (r *Registry) Get(id domain.SessionID) (*core.Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes s if it is still the registered session under its id.
// Removing an unknown or already replaced session is a no-op.
func (r *Registry) Remove(s *core.Session) bool {
	cur, ok := r.sessions[s.ID()]
	if !ok || cur != s {
		return false
	}
	delete(r.sessions, s.ID())
	r.metrics.setSessions(len(r.sessions))
	log.Info().Str("module", "app.registry").Str("session", string(s.ID())).Msg("session destroyed")
	return true
}

func (r *Registry) Len() int { return len(r.sessions) }

// List returns a snapshot sorted by session id.
func (r *Registry) List() []core.SessionInfo {
	out := make([]core.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
