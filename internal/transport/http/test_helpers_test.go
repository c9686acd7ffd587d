package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/chat"
	"github.com/vovakirdan/linechat/internal/config"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/metrics"
	"github.com/vovakirdan/linechat/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	deps   Deps
	jwt    *auth.JWTConfig
}

// startTestServer wires an in-memory chat stack behind the ops server.
func startTestServer(t *testing.T, jwtSecret string) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	creds := auth.NewCredentials(st, bcrypt.MinCost, &disabledLogger)
	sessions := core.NewSessions()
	directory := core.NewDirectory(false)
	if _, err := directory.Ensure("#general"); err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	m := metrics.New()

	deps := Deps{
		Conns:       chat.NewHandler(creds, sessions, directory, m, &disabledLogger, chat.Options{}),
		Credentials: creds,
		Sessions:    sessions,
		Directory:   directory,
		Metrics:     m,
	}

	cfg := config.Default()
	cfg.HTTPAddr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.JWTSecret = jwtSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := NewServer(ctx, deps, &cfg, &disabledLogger)
	ts := httptest.NewUnstartedServer(srv.Handler)
	ts.Config.BaseContext = srv.BaseContext
	ts.Start()
	t.Cleanup(ts.Close)

	return &testEnv{
		server: ts,
		deps:   deps,
		jwt: &auth.JWTConfig{
			Secret:   []byte(jwtSecret),
			Issuer:   "test",
			Audience: "test",
			TTL:      time.Hour,
		},
	}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(e.jwt, "ops")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}
