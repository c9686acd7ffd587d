package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/linechat/internal/core"
)

const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionMessage        = "message"
	ActionPrivateMessage = "private_message"
	ActionCommand        = "command"

	ActionSystem        = "system"
	ActionChannelUpdate = "channel_update"

	StatusSuccess = "success"
	StatusError   = "error"

	EventJoin       = "join"
	EventLeave      = "leave"
	EventDisconnect = "disconnect"
)

// Inbound is the raw shape of every line a client sends.
type Inbound struct {
	Action   string `json:"action"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Color    *int   `json:"color,omitempty"`
	Message  string `json:"message,omitempty"`
	Channel  string `json:"channel,omitempty"`
	To       string `json:"to,omitempty"`
}

// Request is one of the typed requests below.
type Request interface {
	Action() string
}

// RegisterRequest creates an account and authenticates the connection.
type RegisterRequest struct {
	Username string
	Password string
	// Color is nil when the client did not pick one.
	Color *int
}

// LoginRequest authenticates the connection as an existing user.
type LoginRequest struct {
	Username string
	Password string
}

// LogoutRequest ends the session but keeps the connection open.
type LogoutRequest struct{}

// MessageRequest is a chat line. Channel is optional.
type MessageRequest struct {
	Message string
	Channel string
}

// PrivateMessageRequest is a chat line for a single user.
type PrivateMessageRequest struct {
	To      string
	Message string
}

// CommandRequest carries a slash command such as "/join #go".
type CommandRequest struct {
	Message string
}

func (RegisterRequest) Action() string       { return ActionRegister }
func (LoginRequest) Action() string          { return ActionLogin }
func (LogoutRequest) Action() string         { return ActionLogout }
func (MessageRequest) Action() string        { return ActionMessage }
func (PrivateMessageRequest) Action() string { return ActionPrivateMessage }
func (CommandRequest) Action() string        { return ActionCommand }

// Decode parses one line into a typed request. Undecodable lines and
// unknown actions yield core.ErrMalformedRequest.
func Decode(line []byte) (Request, error) {
	var in Inbound
	if err := json.Unmarshal(line, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRequest, err)
	}

	switch in.Action {
	case ActionRegister:
		return RegisterRequest{Username: in.Username, Password: in.Password, Color: in.Color}, nil
	case ActionLogin:
		return LoginRequest{Username: in.Username, Password: in.Password}, nil
	case ActionLogout:
		return LogoutRequest{}, nil
	case ActionMessage:
		return MessageRequest{Message: in.Message, Channel: in.Channel}, nil
	case ActionPrivateMessage:
		return PrivateMessageRequest{To: in.To, Message: in.Message}, nil
	case ActionCommand:
		return CommandRequest{Message: in.Message}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", core.ErrMalformedRequest, in.Action)
	}
}

// AuthResponse answers register, login and logout.
type AuthResponse struct {
	Action            string   `json:"action"`
	Status            string   `json:"status"`
	Message           string   `json:"message"`
	Code              string   `json:"code,omitempty"`
	Retry             *bool    `json:"retry,omitempty"`
	SessionID         string   `json:"session_id,omitempty"`
	Username          string   `json:"username,omitempty"`
	Color             *int     `json:"color,omitempty"`
	AvailableChannels []string `json:"available_channels,omitempty"`
}

// ChannelInfo describes one channel in a /list reply.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// System is an informational notice for one client or everyone.
type System struct {
	Action   string        `json:"action"`
	Message  string        `json:"message"`
	Channel  string        `json:"channel,omitempty"`
	Channels []ChannelInfo `json:"channels,omitempty"`
	Users    []string      `json:"users,omitempty"`
}

// ChannelUpdate tells channel members that someone arrived or left.
type ChannelUpdate struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Event   string `json:"event"`
	Message string `json:"message"`
}

// ChatMessage is a delivered chat line. An empty Channel means global scope.
type ChatMessage struct {
	Action  string `json:"action"`
	From    string `json:"from"`
	Color   int    `json:"color"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// PrivateMessage is a delivered private line.
type PrivateMessage struct {
	Action  string `json:"action"`
	From    string `json:"from"`
	Color   int    `json:"color"`
	Message string `json:"message"`
}

// ErrorResponse reports a failed request. Action echoes the request when known.
type ErrorResponse struct {
	Action  string `json:"action,omitempty"`
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals v as a single protocol line, newline included.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return append(b, '\n'), nil
}

// MustEncode is Encode for values whose shape is known to marshal.
func MustEncode(v any) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

// NewError builds the error response for err.
func NewError(action string, err error) ErrorResponse {
	ce := core.AsError(err)
	return ErrorResponse{Action: action, Status: StatusError, Code: ce.Code, Message: ce.Message}
}

// NewAuthError builds a register or login failure carrying the retry flag.
func NewAuthError(action string, err error) AuthResponse {
	ce := core.AsError(err)
	retry := ce.Retry
	return AuthResponse{
		Action:  action,
		Status:  StatusError,
		Message: ce.Message,
		Code:    ce.Code,
		Retry:   &retry,
	}
}
