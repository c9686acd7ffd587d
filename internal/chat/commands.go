package chat

import (
	"strings"

	"github.com/vovakirdan/linechat/internal/core"
	"github.com/vovakirdan/linechat/internal/proto"
)

func usage(text string) error {
	return &core.Error{Code: core.CodeUnknownCommand, Message: "Usage: " + text}
}

// command runs one slash command. Only the verb is case-insensitive.
func (c *connection) command(line string) {
	if !c.client.Authenticated() {
		c.replyError(proto.ActionCommand, core.ErrNotAuthenticated)
		return
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.replyError(proto.ActionCommand, core.ErrUnknownCommand)
		return
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "/join":
		if len(args) != 1 {
			c.replyError(proto.ActionCommand, usage("/join <channel>"))
			return
		}
		c.join(args[0])
	case "/leave":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		c.leave(name)
	case "/list":
		c.list()
	case "/who":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		c.who(name)
	case "/msg":
		rest := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])
		to, text, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(text) == "" {
			c.replyError(proto.ActionCommand, usage("/msg <user> <text>"))
			return
		}
		c.privateMessage(to, text, proto.ActionCommand)
	case "/users":
		c.users()
	case "/logout":
		c.logout(proto.ActionCommand)
	default:
		c.replyError(proto.ActionCommand, core.ErrUnknownCommand)
	}
}

func (c *connection) join(name string) {
	prev := c.h.directory.Current(c.client)
	joined, left, err := c.h.directory.Join(c.client, name)
	if err != nil {
		c.replyError(proto.ActionCommand, err)
		return
	}

	user := c.client.Name()
	if left != "" {
		c.notifyChannel(left, user, proto.EventLeave, departureText(user, left, proto.EventLeave))
	}
	if prev != joined {
		c.notifyChannel(joined, user, proto.EventJoin, user+" joined "+joined)
		c.log.Debug().Str("username", user).Str("channel", joined).Msg("joined channel")
	}
	c.reply(proto.System{Action: proto.ActionSystem, Message: "Joined channel " + joined, Channel: joined})
}

func (c *connection) leave(name string) {
	left, err := c.h.directory.Leave(c.client, name)
	if err != nil {
		c.replyError(proto.ActionCommand, err)
		return
	}

	user := c.client.Name()
	c.notifyChannel(left, user, proto.EventLeave, departureText(user, left, proto.EventLeave))
	c.log.Debug().Str("username", user).Str("channel", left).Msg("left channel")
	c.reply(proto.System{Action: proto.ActionSystem, Message: "Left channel " + left, Channel: left})
}

func (c *connection) list() {
	infos := c.h.directory.List()
	channels := make([]proto.ChannelInfo, 0, len(infos))
	names := make([]string, 0, len(infos))
	for _, ch := range infos {
		channels = append(channels, proto.ChannelInfo{Name: ch.Name, Members: ch.Members})
		names = append(names, ch.Name)
	}

	text := "No channels"
	if len(names) > 0 {
		text = "Available channels: " + strings.Join(names, ", ")
	}
	c.reply(proto.System{Action: proto.ActionSystem, Message: text, Channels: channels})
}

func (c *connection) who(name string) {
	if name == "" {
		name = c.h.directory.Current(c.client)
		if name == "" {
			c.replyError(proto.ActionCommand, core.ErrNotInChannel)
			return
		}
	}
	norm, err := core.NormalizeChannel(name)
	if err != nil {
		c.replyError(proto.ActionCommand, err)
		return
	}
	users, err := c.h.directory.Who(norm)
	if err != nil {
		c.replyError(proto.ActionCommand, err)
		return
	}

	text := "No users in " + norm
	if len(users) > 0 {
		text = "Users in " + norm + ": " + strings.Join(users, ", ")
	}
	c.reply(proto.System{Action: proto.ActionSystem, Message: text, Channel: norm, Users: users})
}

func (c *connection) users() {
	sessions := c.h.sessions.All()
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.Username)
	}
	c.reply(proto.System{Action: proto.ActionSystem, Message: "Online: " + strings.Join(names, ", "), Users: names})
}
