package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 256,
	}
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *JoinRateLimiter
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, limiter *JoinRateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Limiter: limiter,
		opts:    opts,
	}
}

// WsSignalConn queues outbound frames for the write pump. Close stops
// accepting frames; the pump flushes what is queued and then closes the
// socket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	if buffer < 1 {
		buffer = 1
	}
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	go ctl.writePump(ctx, conn)

	client, err := ctl.Orch.Connect(ctx, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("dispatcher refused connection")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("client", string(client.ID())).Str("token", token).Msg("new WS connection")

	go ctl.readPump(ctx, client, conn)
}
