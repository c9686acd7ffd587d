package chat

import (
	"errors"
	"strings"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/proto"
	"github.com/vovakirdan/linechat/internal/store"
)

func (c *connection) register(r proto.RegisterRequest) {
	if c.client.Authenticated() {
		c.reply(proto.NewAuthError(proto.ActionRegister, core.ErrAlreadyAuthenticated))
		return
	}

	color := auth.DefaultColor
	if r.Color != nil {
		color = *r.Color
	}

	user, err := c.h.creds.Register(c.ctx, r.Username, r.Password, color)
	if err != nil {
		c.h.metrics.FailedAuths.Add(1)
		c.log.Info().Err(err).Str("username", r.Username).Msg("registration rejected")
		c.reply(proto.NewAuthError(proto.ActionRegister, err))
		return
	}

	c.h.metrics.Registrations.Add(1)
	c.log.Info().Str("username", user.Username).Int("color", user.Color).Msg("user registered")
	c.startSession(proto.ActionRegister, user, "Registration complete")
}

func (c *connection) login(r proto.LoginRequest) {
	if c.client.Authenticated() {
		c.reply(proto.NewAuthError(proto.ActionLogin, core.ErrAlreadyAuthenticated))
		return
	}

	user, err := c.h.creds.Authenticate(c.ctx, r.Username, r.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnknownUser) {
			err = core.ErrInvalidCredentials
		}
		c.h.metrics.FailedAuths.Add(1)
		c.log.Info().Err(err).Str("username", r.Username).Msg("login rejected")
		c.reply(proto.NewAuthError(proto.ActionLogin, err))
		return
	}

	c.startSession(proto.ActionLogin, user, "Login successful")
}

// startSession binds the connection to user and tells everyone else.
func (c *connection) startSession(action string, user store.User, text string) {
	sess, err := c.h.sessions.Begin(user.Username, c.client)
	if err != nil {
		c.h.metrics.FailedAuths.Add(1)
		c.log.Info().Err(err).Str("username", user.Username).Msg("session rejected")
		c.reply(proto.NewAuthError(action, err))
		return
	}
	c.client.SetIdentity(user.Username, user.Color)
	c.h.metrics.SuccessfulAuths.Add(1)
	c.log.Info().Str("username", user.Username).Str("action", action).Msg("session started")

	c.announce(user.Username + " joined the chat")

	color := user.Color
	c.reply(proto.AuthResponse{
		Action:            action,
		Status:            proto.StatusSuccess,
		Message:           text,
		SessionID:         sess.ID,
		Username:          user.Username,
		Color:             &color,
		AvailableChannels: c.h.directory.Names(),
	})
}

// logout ends the session and returns the connection to the
// unauthenticated state without closing it.
func (c *connection) logout(action string) {
	name := c.client.Name()
	if name == "" {
		c.replyError(action, core.ErrNotAuthenticated)
		return
	}

	c.departChannels(proto.EventLeave)
	c.h.sessions.Release(name, c.client)
	c.client.SetIdentity("", 0)
	c.log.Info().Str("username", name).Msg("session ended by logout")

	c.announce(name + " left the chat")
	c.reply(proto.AuthResponse{Action: proto.ActionLogout, Status: proto.StatusSuccess, Message: "Logged out", Username: name})
}

// message routes a chat line to an explicit channel, the current channel,
// or everyone when the sender is in no channel.
func (c *connection) message(r proto.MessageRequest) {
	if !c.client.Authenticated() {
		c.replyError(proto.ActionMessage, core.ErrNotAuthenticated)
		return
	}
	text := strings.TrimSpace(r.Message)
	if text == "" {
		return
	}
	if !c.allow(proto.ActionMessage) {
		return
	}

	channel := ""
	if r.Channel != "" {
		norm, err := core.NormalizeChannel(r.Channel)
		if err != nil {
			c.replyError(proto.ActionMessage, err)
			return
		}
		if !c.h.directory.IsMember(c.client, norm) {
			c.replyError(proto.ActionMessage, core.ErrNotInChannel)
			return
		}
		channel = norm
	} else {
		channel = c.h.directory.Current(c.client)
	}

	msg := proto.ChatMessage{
		Action:  proto.ActionMessage,
		From:    c.client.Name(),
		Color:   c.client.Color(),
		Message: text,
		Channel: channel,
	}

	scope := core.GlobalScope()
	if channel != "" {
		scope = core.ChannelScope(channel)
	}
	d, err := c.deliver(c.client, msg, scope)
	if err != nil {
		c.replyError(proto.ActionMessage, err)
		return
	}

	if channel == "" {
		c.h.metrics.GlobalMessages.Add(1)
	} else {
		c.h.metrics.ChannelMessages.Add(1)
	}
	c.log.Debug().Str("channel", channel).Int("recipients", d.Delivered).Msg("message relayed")
}

func (c *connection) privateMessage(to, message, action string) {
	if !c.client.Authenticated() {
		c.replyError(action, core.ErrNotAuthenticated)
		return
	}
	to = strings.TrimSpace(to)
	text := strings.TrimSpace(message)
	if to == "" {
		c.replyError(action, core.ErrUserNotFound)
		return
	}
	if text == "" {
		return
	}
	if !c.allow(action) {
		return
	}

	msg := proto.PrivateMessage{
		Action:  proto.ActionPrivateMessage,
		From:    c.client.Name(),
		Color:   c.client.Color(),
		Message: text,
	}
	if _, err := c.deliver(c.client, msg, core.PrivateScope(to)); err != nil {
		c.replyError(action, err)
		return
	}
	c.h.metrics.PrivateMessages.Add(1)
	c.log.Debug().Str("to", to).Msg("private message relayed")
}
