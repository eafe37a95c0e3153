package handler

import (
	"net/http"

	"taskhub/internal/ws"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presence *ws.Presence
}

func NewPresenceHandler(presence *ws.Presence) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Online returns the users that currently have a live connection.
func (h *PresenceHandler) Online(c *gin.Context) {
	users := h.presence.ListOnline()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
