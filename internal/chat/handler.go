package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/metrics"
	"github.com/vovakirdan/linechat/internal/proto"
)

const (
	defaultMaxLineBytes   = 64 * 1024
	defaultOutboundBuffer = 64
)

// Options tunes per-connection limits.
type Options struct {
	MaxLineBytes   int
	OutboundBuffer int
	// MessagesPerMinute caps chat lines per connection. Zero disables the cap.
	MessagesPerMinute int
}

// Handler drives the line protocol for every connection it is given.
// It is safe for concurrent use; all shared state lives in the registries.
type Handler struct {
	creds      *auth.Credentials
	sessions   *core.Sessions
	directory  *core.Directory
	dispatcher *core.Dispatcher
	metrics    *metrics.Metrics
	log        *zerolog.Logger
	opts       Options
}

// NewHandler wires a handler over the shared registries.
func NewHandler(
	creds *auth.Credentials,
	sessions *core.Sessions,
	directory *core.Directory,
	m *metrics.Metrics,
	logger *zerolog.Logger,
	opts Options,
) *Handler {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = defaultOutboundBuffer
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{
		creds:      creds,
		sessions:   sessions,
		directory:  directory,
		dispatcher: core.NewDispatcher(sessions, directory),
		metrics:    m,
		log:        logger,
		opts:       opts,
	}
}

// connection is the per-client state owned by one ServeConn call.
type connection struct {
	h       *Handler
	ctx     context.Context
	client  *core.Client
	limiter *rateLimiter
	log     zerolog.Logger
}

// ServeConn runs the connection until the peer disconnects, a transport
// error occurs or ctx is cancelled. The connection is closed on return.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	client := core.NewClient(uuid.NewString(), conn, h.opts.OutboundBuffer)
	c := &connection{
		h:       h,
		ctx:     ctx,
		client:  client,
		limiter: newRateLimiter(h.opts.MessagesPerMinute, time.Minute),
		log:     h.log.With().Str("conn_id", client.ID).Str("remote", remoteAddr(conn)).Logger(),
	}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	c.log.Info().Msg("connection opened")

	stop := context.AfterFunc(ctx, client.Close)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- c.readLoop(conn)
	}()
	go func() {
		errCh <- c.writeLoop(conn)
	}()

	err := <-errCh
	client.Close() // stop the other loop
	<-errCh

	c.cleanup()

	h.metrics.ActiveConnections.Add(-1)
	h.metrics.TotalDisconnects.Add(1)
	if err != nil && !isClosed(err) {
		c.log.Warn().Err(err).Msg("connection closed with error")
		return
	}
	c.log.Info().Msg("connection closed")
}

func (c *connection) readLoop(r io.Reader) error {
	initial := 4096
	if c.h.opts.MaxLineBytes < initial {
		initial = c.h.opts.MaxLineBytes
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), c.h.opts.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		c.handleLine(line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (c *connection) writeLoop(w io.Writer) error {
	for {
		select {
		case frame := <-c.client.Events:
			if _, err := w.Write(frame); err != nil {
				return err
			}
		case <-c.client.Done():
			return nil
		}
	}
}

// cleanup removes every trace of the connection from the shared tables.
// Channel and session state are never locked together.
func (c *connection) cleanup() {
	name := c.client.Name()
	c.departChannels(proto.EventDisconnect)
	if name == "" {
		return
	}
	if c.h.sessions.Release(name, c.client) {
		c.announce(name + " disconnected")
	}
	c.log.Info().Str("username", name).Msg("session ended by disconnect")
}

func (c *connection) handleLine(line []byte) {
	req, err := proto.Decode(line)
	if err != nil {
		c.h.metrics.MalformedRequests.Add(1)
		c.log.Debug().Err(err).Msg("malformed request")
		c.replyError("", err)
		return
	}

	c.log.Debug().Str("action", req.Action()).Msg("request")

	switch r := req.(type) {
	case proto.RegisterRequest:
		c.register(r)
	case proto.LoginRequest:
		c.login(r)
	case proto.LogoutRequest:
		c.logout(proto.ActionLogout)
	case proto.MessageRequest:
		c.message(r)
	case proto.PrivateMessageRequest:
		c.privateMessage(r.To, r.Message, proto.ActionPrivateMessage)
	case proto.CommandRequest:
		c.command(r.Message)
	}
}

func (c *connection) reply(v any) {
	frame, err := proto.Encode(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode reply")
		return
	}
	c.client.Reply(frame)
}

func (c *connection) replyError(action string, err error) {
	c.reply(proto.NewError(action, err))
}

// deliver hands frame to the dispatcher and records the outcome.
func (c *connection) deliver(sender *core.Client, v any, scope core.Scope) (core.Delivery, error) {
	frame, err := proto.Encode(v)
	if err != nil {
		return core.Delivery{}, err
	}
	d, err := c.h.dispatcher.Dispatch(sender, frame, scope)
	if d.Dropped > 0 {
		c.h.metrics.DroppedDeliveries.Add(int64(d.Dropped))
		c.log.Debug().Int("dropped", d.Dropped).Msg("slow recipients closed")
	}
	return d, err
}

// announce sends a system notice to every other authenticated connection.
func (c *connection) announce(text string) {
	_, _ = c.deliver(c.client, proto.System{Action: proto.ActionSystem, Message: text}, core.GlobalScope())
}

// notifyChannel tells the current members of channel about user.
// The sender is nil so a departed user can still notify the channel it left.
func (c *connection) notifyChannel(channel, user, event, text string) {
	update := proto.ChannelUpdate{
		Action:  proto.ActionChannelUpdate,
		Channel: channel,
		User:    user,
		Event:   event,
		Message: text,
	}
	if event == proto.EventJoin {
		_, _ = c.deliver(c.client, update, core.ChannelScope(channel))
		return
	}
	_, _ = c.deliver(nil, update, core.ChannelScope(channel))
}

// departChannels drops the connection from every channel and tells the
// remaining members.
func (c *connection) departChannels(event string) {
	name := c.client.Name()
	for _, ch := range c.h.directory.RemoveEverywhere(c.client) {
		if name == "" {
			continue
		}
		c.notifyChannel(ch, name, event, departureText(name, ch, event))
	}
}

func departureText(name, channel, event string) string {
	if event == proto.EventDisconnect {
		return name + " disconnected from " + channel
	}
	return name + " left " + channel
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
