package signal

import (
	"context"
	"time"

	"github.com/dkeye/relay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// readPump feeds inbound frames to the dispatcher and reports the
// disconnect when the socket goes away for any reason.
func (ctl *SignalWSController) readPump(ctx context.Context, client *core.Client, c *WsSignalConn) {
	id := string(client.ID())
	defer func() {
		log.Info().Str("module", "signal").Str("client", id).Msg("readPump closing")
		c.Close()
		ctl.Limiter.Forget(client.ID())
		if err := ctl.Orch.Disconnect(context.WithoutCancel(ctx), client); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("client", id).Msg("disconnect not delivered")
		}
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("client", id).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(ctx, client, data)
	}
}

func (ctl *SignalWSController) handleFrame(ctx context.Context, client *core.Client, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("client", string(client.ID())).Msg("bad json")
		return
	}

	switch env.Kind {
	case core.KindSessionCreate, core.KindSessionJoin:
		if !ctl.Limiter.Allow(client.ID()) {
			log.Warn().Str("module", "signal").Str("client", string(client.ID())).Str("type", env.Type).Msg("join rate limit exceeded")
			return
		}
	}

	if err := ctl.Orch.Receive(ctx, client, env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("client", string(client.ID())).Msg("message not delivered")
	}
}
