package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/chat"
	"github.com/vovakirdan/linechat/internal/config"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/metrics"
	"github.com/vovakirdan/linechat/internal/store"
	"github.com/vovakirdan/linechat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/linechat/internal/transport/http"
	"github.com/vovakirdan/linechat/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg             *config.Config
	tcp             *tcp.Server
	handler         *chat.Handler
	creds           *auth.Credentials
	sessions        *core.Sessions
	directory       *core.Directory
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
	store           store.UserStore
	log             *zerolog.Logger
}

// OpenStore opens the user database.
func OpenStore(cfg *config.Config) (store.UserStore, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}

// New constructs the application with provided configuration. A database
// that cannot be opened is not fatal: the server runs with an empty
// credential table and refuses registrations.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		logger.Warn().Err(err).Str("db_path", cfg.DatabasePath).Msg("user database unavailable, registrations disabled")
		st = store.Unavailable{Err: err}
	} else {
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	}

	creds := auth.NewCredentials(st, cfg.BcryptCost, logger)
	if err := creds.Reload(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to load users, starting empty")
	}
	logger.Info().Int("users", creds.Count()).Msg("credentials loaded")

	directory := core.NewDirectory(cfg.GCEmptyChannels)
	for _, name := range cfg.DefaultChannels {
		norm, err := directory.Ensure(name)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("default channel %q: %w", name, err)
		}
		logger.Debug().Str("channel", norm).Msg("default channel ready")
	}

	sessions := core.NewSessions()
	m := metrics.New()
	handler := chat.NewHandler(creds, sessions, directory, m, logger, chat.Options{
		MaxLineBytes:      cfg.MaxLineBytes,
		OutboundBuffer:    cfg.OutboundBuffer,
		MessagesPerMinute: cfg.MessagesPerMinute,
	})

	return &App{
		cfg:             cfg,
		tcp:             tcp.NewServer(cfg.Addr, handler, logger),
		handler:         handler,
		creds:           creds,
		sessions:        sessions,
		directory:       directory,
		metrics:         m,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// TCPAddr returns the bound chat address once Run has started listening.
func (a *App) TCPAddr() net.Addr {
	return a.tcp.Addr()
}

// Run starts the chat and ops servers and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.tcp.Listen(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.metrics.StartPeriodicLog(runCtx, a.cfg.MetricsInterval, a.log)

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- a.tcp.Serve(runCtx)
	}()

	var httpServer *stdhttp.Server
	if a.cfg.HTTPAddr != "" {
		httpServer = transporthttp.NewServer(runCtx, transporthttp.Deps{
			Conns:       a.handler,
			Credentials: a.creds,
			Sessions:    a.sessions,
			Directory:   a.directory,
			Metrics:     a.metrics,
		}, a.cfg, a.log)
		go func() {
			a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- fmt.Errorf("http server: %w", err)
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr != nil {
			a.log.Error().Err(runErr).Msg("server failed")
		}
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer stop()

	cancel()
	var errs []error
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.tcp.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.metrics.LogSummary(a.log)

	if runErr != nil {
		return runErr
	}
	return errors.Join(errs...)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
