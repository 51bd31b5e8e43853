// Package orch is the relay dispatcher. A single loop owns every session,
// registry and client mutation; transports only post events to it.
package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/relay/internal/app"
	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotInSession = errors.New("client is not in a session")
	ErrStopped      = errors.New("dispatcher stopped")
)

type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	Metrics  *app.Metrics
	NewID    domain.IDGenerator
	Now      func() time.Time

	events   chan event
	pending  *queue.Queue
	clients  map[domain.ClientID]*core.Client
	done     chan struct{}
	stopOnce sync.Once
}

func New(reg *app.Registry, policy app.Policy, buffer int) *Orchestrator {
	if buffer < 0 {
		buffer = 0
	}
	return &Orchestrator{
		Registry: reg,
		Policy:   policy,
		NewID:    domain.NewID,
		Now:      time.Now,
		events:   make(chan event, buffer),
		pending:  queue.New(),
		clients:  make(map[domain.ClientID]*core.Client),
		done:     make(chan struct{}),
	}
}

// event is the closed set of inputs the loop accepts.
type event interface {
	apply(o *Orchestrator)
}

type connectEvent struct{ client *core.Client }

type messageEvent struct {
	client *core.Client
	env    core.Envelope
}

type disconnectEvent struct{ client *core.Client }

type queryEvent struct {
	fn   func()
	done chan struct{}
}

func (e connectEvent) apply(o *Orchestrator)    { o.onConnect(e.client) }
func (e messageEvent) apply(o *Orchestrator)    { o.onMessage(e.client, e.env) }
func (e disconnectEvent) apply(o *Orchestrator) { o.onDisconnect(e.client) }

func (e queryEvent) apply(o *Orchestrator) {
	e.fn()
	close(e.done)
}

// Run processes events one at a time until ctx is done. On exit every
// connected client is closed.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().Str("module", "orch").Msg("dispatcher started")
	defer o.stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Int("clients", len(o.clients)).Msg("dispatcher stopping")
			return ctx.Err()
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		for _, c := range o.clients {
			c.Close()
		}
	})
}

// handle runs ev to completion, then every disconnect it deferred. Deferred
// events re-enter through apply, never inline in the caller.
func (o *Orchestrator) handle(ev event) {
	ev.apply(o)
	for o.pending.Length() > 0 {
		next := o.pending.Remove().(event)
		next.apply(o)
	}
}

func (o *Orchestrator) enqueue(ev event) {
	o.pending.Add(ev)
}

func (o *Orchestrator) post(ctx context.Context, ev event) error {
	select {
	case <-o.done:
		return ErrStopped
	default:
	}
	select {
	case o.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}
}

// Connect registers a freshly accepted transport connection.
func (o *Orchestrator) Connect(ctx context.Context, conn core.SignalConnection) (*core.Client, error) {
	c := core.NewClient(domain.NewClientID(o.NewID), conn)
	if err := o.post(ctx, connectEvent{client: c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (o *Orchestrator) Receive(ctx context.Context, c *core.Client, env core.Envelope) error {
	return o.post(ctx, messageEvent{client: c, env: env})
}

// Disconnect reports that c's transport closed. Reporting the same client
// twice is harmless.
func (o *Orchestrator) Disconnect(ctx context.Context, c *core.Client) error {
	return o.post(ctx, disconnectEvent{client: c})
}

// Sessions returns a registry snapshot taken on the loop.
func (o *Orchestrator) Sessions(ctx context.Context) ([]core.SessionInfo, error) {
	var out []core.SessionInfo
	q := queryEvent{
		fn:   func() { out = o.Registry.List() },
		done: make(chan struct{}),
	}
	if err := o.post(ctx, q); err != nil {
		return nil, err
	}
	select {
	case <-q.done:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-o.done:
		return nil, ErrStopped
	}
}

func (o *Orchestrator) onConnect(c *core.Client) {
	o.clients[c.ID()] = c
	o.Metrics.SetClients(len(o.clients))
	log.Info().Str("module", "orch").Str("client", string(c.ID())).Msg("client connected")
}

func (o *Orchestrator) onMessage(c *core.Client, env core.Envelope) {
	o.Metrics.Envelope(env.Kind)
	if c.Departed() {
		log.Debug().Str("module", "orch").Str("client", string(c.ID())).Str("type", env.Type).Msg("message after disconnect dropped")
		return
	}
	log.Debug().Str("module", "orch").Str("client", string(c.ID())).Str("type", env.Type).Msg("message received")

	var err error
	switch env.Kind {
	case core.KindSessionCreate:
		err = o.sessionCreate(c)
	case core.KindSessionJoin:
		err = o.sessionJoin(c, env.Data)
	case core.KindUpdateState:
		err = o.updateState(c, env.Data)
	default:
		log.Warn().Str("module", "orch").Str("client", string(c.ID())).Str("type", env.Type).Msg("unknown message type ignored")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("client", string(c.ID())).Str("type", env.Type).Msg("message rejected")
	}
}
