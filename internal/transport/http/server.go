package http

import (
	"context"
	"net"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/config"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/metrics"
)

// ConnServer runs the line protocol over an established connection.
type ConnServer interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// Deps are the components exposed over HTTP.
type Deps struct {
	Conns       ConnServer
	Credentials *auth.Credentials
	Sessions    *core.Sessions
	Directory   *core.Directory
	Metrics     *metrics.Metrics
}

// NewServer builds the operations HTTP server. Requests, including bridged
// WebSocket connections, derive their context from baseCtx.
func NewServer(baseCtx context.Context, deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	ops := NewOpsHandlers(deps.Metrics)
	router.GET("/health", ops.Health)
	router.GET("/metrics", ops.Metrics)
	router.GET("/ws", gin.WrapH(NewWSHandler(deps.Conns, logger)))

	if cfg.JWTSecret != "" {
		jwtConfig := &auth.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.JWTTTL,
		}
		channels := NewChannelHandlers(deps.Directory, logger)
		users := NewUserHandlers(deps.Credentials, deps.Sessions, logger)

		api := router.Group("/api")
		api.Use(AuthMiddleware(jwtConfig, logger))
		{
			api.GET("/channels", channels.ListChannels)
			api.GET("/channels/:name/members", channels.ListMembers)
			api.GET("/sessions", users.ListSessions)
			api.GET("/users", users.SearchUsers)
		}
	} else {
		logger.Info().Msg("jwt_secret not set, operator API disabled")
	}

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
}
