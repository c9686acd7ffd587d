package http

import (
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// WSHandler upgrades HTTP connections and runs the line protocol over them.
// Every text message carries one or more newline-terminated lines.
type WSHandler struct {
	conns ConnServer
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(conns ConnServer, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{conns: conns, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws connection bridged")
	h.conns.ServeConn(ctx, websocket.NetConn(ctx, conn, websocket.MessageText))
}
