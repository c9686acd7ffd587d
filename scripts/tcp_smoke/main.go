package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/vovakirdan/linechat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("tcp_smoke: %v", err)
		os.Exit(1)
	}
}

type peer struct {
	name string
	conn net.Conn
	r    *bufio.Reader
}

func run() error {
	addr := flag.String("addr", "localhost:6668", "chat address, or a ws:// URL for the WebSocket bridge")
	channel := flag.String("channel", "#general", "channel to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	sender, err := connect(ctx, *addr, "a"+suffix)
	if err != nil {
		return err
	}
	defer sender.conn.Close()
	receiver, err := connect(ctx, *addr, "b"+suffix)
	if err != nil {
		return err
	}
	defer receiver.conn.Close()

	for _, p := range []*peer{sender, receiver} {
		if err := p.send(proto.Inbound{Action: proto.ActionRegister, Username: p.name, Password: "smoke"}); err != nil {
			return err
		}
		if _, err := p.await(func(f map[string]any) bool { return f["action"] == proto.ActionRegister }); err != nil {
			return err
		}
		if err := p.send(proto.Inbound{Action: proto.ActionCommand, Message: "/join " + *channel}); err != nil {
			return err
		}
		if _, err := p.await(func(f map[string]any) bool { return f["action"] == proto.ActionSystem && f["channel"] != nil }); err != nil {
			return err
		}
	}

	if err := sender.send(proto.Inbound{Action: proto.ActionMessage, Message: *text}); err != nil {
		return err
	}
	msg, err := receiver.await(func(f map[string]any) bool { return f["action"] == proto.ActionMessage })
	if err != nil {
		return err
	}
	fmt.Printf("Message: channel=%v from=%v text=%q\n", msg["channel"], msg["from"], msg["message"])
	return nil
}

func connect(ctx context.Context, addr, name string) (*peer, error) {
	var conn net.Conn
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		ws, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		conn = websocket.NetConn(ctx, ws, websocket.MessageText)
	} else {
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		conn = c
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return &peer{name: name, conn: conn, r: bufio.NewReader(conn)}, nil
}

func (p *peer) send(in proto.Inbound) error {
	b, err := proto.Encode(in)
	if err != nil {
		return err
	}
	if _, err := p.conn.Write(b); err != nil {
		return fmt.Errorf("%s send: %w", p.name, err)
	}
	return nil
}

// await prints every frame until match accepts one. Error frames abort.
func (p *peer) await(match func(map[string]any) bool) (map[string]any, error) {
	for {
		line, err := p.r.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("%s read: %w", p.name, err)
		}
		var f map[string]any
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("%s decode: %w", p.name, err)
		}
		fmt.Printf("[%s] %s", p.name, line)
		if f["status"] == proto.StatusError {
			return nil, fmt.Errorf("%s: server error %v: %v", p.name, f["code"], f["message"])
		}
		if match(f) {
			return f, nil
		}
	}
}
