package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/core"
)

// UserHandlers exposes registered users and live sessions to operators.
type UserHandlers struct {
	creds    *auth.Credentials
	sessions *core.Sessions
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(creds *auth.Credentials, sessions *core.Sessions, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		creds:    creds,
		sessions: sessions,
		log:      logger,
	}
}

// SessionResponse represents a live session in API responses.
type SessionResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	ConnID    string `json:"conn_id"`
	CreatedAt string `json:"created_at"`
}

// UserResponse represents a registered user in API responses.
type UserResponse struct {
	Username  string `json:"username"`
	Color     int    `json:"color"`
	Online    bool   `json:"online"`
	CreatedAt string `json:"created_at"`
}

// ListSessions handles listing live sessions.
// GET /api/sessions
func (h *UserHandlers) ListSessions(c *gin.Context) {
	all := h.sessions.All()
	response := make([]SessionResponse, 0, len(all))
	for _, s := range all {
		response = append(response, SessionResponse{
			ID:        s.ID,
			Username:  s.Username,
			ConnID:    s.Client.ID,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

// SearchUsers handles listing registered users, optionally filtered by a
// case-insensitive username prefix.
// GET /api/users?q=prefix
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	prefix := strings.ToLower(strings.TrimSpace(c.Query("q")))

	response := make([]UserResponse, 0)
	for _, u := range h.creds.Users() {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			continue
		}
		response = append(response, UserResponse{
			Username:  u.Username,
			Color:     u.Color,
			Online:    h.sessions.IsLoggedIn(u.Username),
			CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.log.Debug().Str("query", prefix).Int("user_count", len(response)).Msg("users listed")
	c.JSON(http.StatusOK, response)
}
