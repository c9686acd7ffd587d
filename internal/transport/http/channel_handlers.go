package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat/internal/core"
)

// ChannelHandlers exposes the channel directory to operators.
type ChannelHandlers struct {
	directory *core.Directory
	log       *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(directory *core.Directory, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		directory: directory,
		log:       logger,
	}
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// MembersResponse lists the users in one channel.
type MembersResponse struct {
	Channel string   `json:"channel"`
	Users   []string `json:"users"`
}

// ListChannels handles listing channels with member counts.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	list := h.directory.List()
	response := make([]ChannelResponse, 0, len(list))
	for _, ch := range list {
		response = append(response, ChannelResponse{Name: ch.Name, Members: ch.Members})
	}

	h.log.Debug().Str("operator", c.GetString(ContextKeyOperator)).Int("channel_count", len(response)).Msg("channels listed")
	c.JSON(http.StatusOK, response)
}

// ListMembers handles listing the users of a channel. The leading '#' may
// be omitted from the path.
// GET /api/channels/:name/members
func (h *ChannelHandlers) ListMembers(c *gin.Context) {
	name, err := core.NormalizeChannel(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel name"})
		return
	}

	users, err := h.directory.Who(name)
	if err != nil {
		if errors.Is(err, core.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Str("channel", name).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, MembersResponse{Channel: name, Users: users})
}
