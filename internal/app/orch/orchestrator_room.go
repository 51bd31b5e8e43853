package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) sessionCreate(c *core.Client) error {
	if c.IsAttached() {
		return fmt.Errorf("session-create: %w", core.ErrAlreadyAttached)
	}
	s, err := o.Registry.Create(domain.NewSessionID(o.NewID))
	if err != nil {
		return fmt.Errorf("session-create: %w", err)
	}
	if err := s.Join(c, true); err != nil {
		o.Registry.Remove(s)
		return fmt.Errorf("session-create: %w", err)
	}
	o.send(s, c, core.KindSessionCreated, core.SessionCreated{ID: s.ID()})
	return nil
}

// sessionJoin joins an existing session, or creates it with the requested
// id and makes c its owner.
func (o *Orchestrator) sessionJoin(c *core.Client, data json.RawMessage) error {
	var p core.SessionJoin
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("session-join: %w: %v", core.ErrBadEnvelope, err)
		}
	}
	if c.IsAttached() {
		return fmt.Errorf("session-join: %w", core.ErrAlreadyAttached)
	}
	id := p.ID
	if id == "" {
		id = domain.NewSessionID(o.NewID)
	}

	s, ok := o.Registry.Get(id)
	createdNow := false
	if !ok {
		var err error
		if s, err = o.Registry.Create(id); err != nil {
			return fmt.Errorf("session-join: %w", err)
		}
		createdNow = true
	}
	if err := s.Join(c, createdNow); err != nil {
		if createdNow {
			o.Registry.Remove(s)
		}
		return fmt.Errorf("session-join: %w", err)
	}
	log.Info().Str("module", "orch").Str("session", string(s.ID())).Str("client", string(c.ID())).Int("size", s.Len()).Msg("session joined")

	o.broadcastState(s)
	return nil
}

// onDisconnect is the disconnect cascade. It runs at most once per client.
func (o *Orchestrator) onDisconnect(c *core.Client) {
	if !c.Depart() {
		return
	}
	delete(o.clients, c.ID())
	o.Metrics.SetClients(len(o.clients))
	log.Info().Str("module", "orch").Str("client", string(c.ID())).Msg("client disconnected")

	s := c.Session()
	if s == nil {
		return
	}
	wasOwner := c.IsOwner()
	s.Leave(c)

	if wasOwner {
		log.Info().Str("module", "orch").Str("session", string(s.ID())).Str("client", string(c.ID())).Int("remaining", s.Len()).Msg("session owner has disconnected")
		o.Metrics.Cascade()
		o.broadcastDestroyed(s)
		// Remaining members are closed and their own cascade is re-entered
		// from the pending queue once this one finishes.
		for _, m := range s.Members() {
			m.Close()
			o.enqueue(disconnectEvent{client: m})
		}
	}

	if s.IsEmpty() {
		o.Registry.Remove(s)
	}

	o.broadcastState(s)
}

// broadcastState sends session-state to every member. Without a live owner
// there is nothing meaningful to report and nothing is sent.
func (o *Orchestrator) broadcastState(s *core.Session) {
	owner, ok := s.Owner()
	if !ok {
		return
	}
	peers := s.Peers()
	for _, m := range s.Members() {
		o.send(s, m, core.KindSessionState, core.SessionState{
			Current: m.ID(),
			Creator: owner.ID(),
			Peers:   peers,
		})
	}
}

func (o *Orchestrator) broadcastDestroyed(s *core.Session) {
	for _, m := range s.Members() {
		o.send(s, m, core.KindSessionDestroyed, nil)
	}
}
