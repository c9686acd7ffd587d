package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/metrics"
	"github.com/vovakirdan/linechat/internal/store"
	"github.com/vovakirdan/linechat/internal/store/sqlite"
)

const testTimeout = 2 * time.Second

type harness struct {
	t         *testing.T
	handler   *Handler
	creds     *auth.Credentials
	sessions  *core.Sessions
	directory *core.Directory
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return newHarnessWith(t, st, Options{})
}

func newHarnessWith(t *testing.T, backend store.UserStore, opts Options) *harness {
	t.Helper()

	creds := auth.NewCredentials(backend, bcrypt.MinCost, nil)
	sessions := core.NewSessions()
	directory := core.NewDirectory(false)
	if _, err := directory.Ensure("#general"); err != nil {
		t.Fatalf("ensure default channel: %v", err)
	}
	m := metrics.New()

	return &harness{
		t:         t,
		handler:   NewHandler(creds, sessions, directory, m, nil, opts),
		creds:     creds,
		sessions:  sessions,
		directory: directory,
		metrics:   m,
	}
}

// connect starts a handler goroutine over an in-memory pipe.
func (h *harness) connect() *testClient {
	h.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	return h.connectCtx(ctx, cancel)
}

func (h *harness) connectCtx(ctx context.Context, cancel context.CancelFunc) *testClient {
	h.t.Helper()

	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.handler.ServeConn(ctx, server)
	}()

	tc := &testClient{t: h.t, conn: client, r: bufio.NewReader(client), done: done}
	h.t.Cleanup(func() {
		_ = client.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(testTimeout):
			h.t.Errorf("handler did not exit")
		}
	})
	return tc
}

// waitUntil polls cond until it holds or the test times out.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type frame map[string]any

func (f frame) str(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f frame) num(key string) int {
	n, _ := f[key].(float64)
	return int(n)
}

func (f frame) strings(key string) []string {
	raw, _ := f[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}
}

func (c *testClient) sendLine(line string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) send(v any) {
	c.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	c.sendLine(string(b))
}

func (c *testClient) next() frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		c.t.Fatalf("decode frame %q: %v", line, err)
	}
	return f
}

// waitFor reads frames until match returns true and returns the matching
// frame plus everything skipped before it.
func (c *testClient) waitFor(match func(frame) bool) (frame, []frame) {
	c.t.Helper()
	var skipped []frame
	for {
		f := c.next()
		if match(f) {
			return f, skipped
		}
		skipped = append(skipped, f)
	}
}

func (c *testClient) waitAction(action string) frame {
	c.t.Helper()
	f, _ := c.waitFor(func(f frame) bool { return f.str("action") == action })
	return f
}

// sync round-trips a /list and returns every frame received before its reply.
func (c *testClient) sync() []frame {
	c.t.Helper()
	c.command("/list")
	_, skipped := c.waitFor(func(f frame) bool {
		_, ok := f["channels"]
		return ok
	})
	return skipped
}

func (c *testClient) register(name, password string, color int) frame {
	c.t.Helper()
	c.send(map[string]any{"action": "register", "username": name, "password": password, "color": color})
	return c.waitAction("register")
}

func (c *testClient) login(name, password string) frame {
	c.t.Helper()
	c.send(map[string]any{"action": "login", "username": name, "password": password})
	return c.waitAction("login")
}

func (c *testClient) mustRegister(name string) {
	c.t.Helper()
	if f := c.register(name, "pw", 6); f.str("status") != "success" {
		c.t.Fatalf("register %s failed: %v", name, f)
	}
}

func (c *testClient) command(text string) {
	c.t.Helper()
	c.send(map[string]any{"action": "command", "message": text})
}

// commandReply sends a command and waits for the system reply naming the
// given key, or an error frame.
func (c *testClient) commandReply(text, key string) frame {
	c.t.Helper()
	c.command(text)
	f, _ := c.waitFor(func(f frame) bool {
		if f.str("status") == "error" {
			return true
		}
		_, ok := f[key]
		return f.str("action") == "system" && ok
	})
	return f
}

func (c *testClient) expectError(code string) frame {
	c.t.Helper()
	f, _ := c.waitFor(func(f frame) bool { return f.str("status") == "error" })
	if f.str("code") != code {
		c.t.Fatalf("expected error %s, got %v", code, f)
	}
	if f.str("message") == "" {
		c.t.Fatalf("error without message: %v", f)
	}
	return f
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	for {
		_, err := c.r.ReadBytes('\n')
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return
		}
		c.t.Fatalf("expected closed connection, got %v", err)
	}
}

func (c *testClient) close() {
	_ = c.conn.Close()
}

func noMessages(t *testing.T, frames []frame) {
	t.Helper()
	for _, f := range frames {
		switch f.str("action") {
		case "message", "private_message":
			t.Fatalf("unexpected delivery: %v", f)
		}
	}
}
