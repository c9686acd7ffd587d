package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/chat"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/store"
)

func startTestServer(t *testing.T) (*Server, chan error) {
	t.Helper()

	logger := zerolog.Nop()
	sessions := core.NewSessions()
	directory := core.NewDirectory(false)
	creds := auth.NewCredentials(store.Unavailable{}, bcrypt.MinCost, &logger)
	handler := chat.NewHandler(creds, sessions, directory, nil, &logger, chat.Options{})

	srv := NewServer("127.0.0.1:0", handler, &logger)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()
	return srv, errCh
}

func dial(t *testing.T, srv *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, bufio.NewReader(conn)
}

func roundTrip(t *testing.T, conn net.Conn, r *bufio.Reader, line string) map[string]any {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := r.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f map[string]any
	if err := json.Unmarshal(resp, &f); err != nil {
		t.Fatalf("decode %q: %v", resp, err)
	}
	return f
}

func TestServeAnswersOverTCP(t *testing.T) {
	srv, _ := startTestServer(t)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	conn, r := dial(t, srv)
	resp := roundTrip(t, conn, r, `{"action":"message","message":"hi"}`)
	if resp["code"] != core.CodeNotAuthenticated {
		t.Fatalf("unexpected response: %v", resp)
	}

	// Registration fails closed when the store is unavailable.
	resp = roundTrip(t, conn, r, `{"action":"register","username":"bob","password":"pw"}`)
	if resp["code"] != core.CodeStorageUnavailable {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	srv, errCh := startTestServer(t)

	conn, r := dial(t, srv)
	roundTrip(t, conn, r, `{"action":"logout"}`)
	if srv.Live() != 1 {
		t.Fatalf("expected one live connection, got %d", srv.Live())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := r.ReadBytes('\n'); !errors.Is(err, io.EOF) {
		var ne net.Error
		if !errors.As(err, &ne) || ne.Timeout() {
			t.Fatalf("expected closed connection, got %v", err)
		}
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after shutdown")
	}
	if srv.Live() != 0 {
		t.Fatalf("expected no live connections, got %d", srv.Live())
	}
}

func TestServeBeforeListen(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewServer("127.0.0.1:0", nil, &logger)
	if err := srv.Serve(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
