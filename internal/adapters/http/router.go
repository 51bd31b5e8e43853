package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/relay/internal/adapters/signal"
	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/config"
	"github.com/dkeye/relay/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware tags each browser with a long-lived token kept in the
// cookie session. The token only correlates log lines; relay identities are
// assigned per connection by the dispatcher.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("client token not saved")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// cookieSecret returns the configured secret, or a random per-process key
// when none is set. Tokens then survive only until restart.
func cookieSecret(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	log.Warn().Str("module", "adapters.http").Msg("no cookie secret configured, using a random one")
	return securecookie.GenerateRandomKey(32)
}

type Deps struct {
	Orch     *orch.Orchestrator
	Limiter  *signal.JoinRateLimiter
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore(cookieSecret(cfg.Secret))
	r.Use(sessions.Sessions("RelaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(deps.Orch, deps.Limiter, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/sessions", func(c *gin.Context) {
		list, err := deps.Orch.Sessions(c.Request.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, orch.ErrStopped) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if list == nil {
			list = []core.SessionInfo{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	return r
}
