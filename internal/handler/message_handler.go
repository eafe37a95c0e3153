package handler

import (
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler is the HTTP surface for direct and project messages. Sends
// made here are pushed to live connections exactly like socket sends.
type MessageHandler struct {
	svc *service.MessageService
}

func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

func (h *MessageHandler) SendDirect(c *gin.Context) {
	var in service.SendDirectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.svc.SendDirect(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Conversations lists the senders with unread direct messages for the caller.
func (h *MessageHandler) Conversations(c *gin.Context) {
	unread, err := h.svc.UnreadBySender(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": unread})
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	list, err := h.svc.Conversation(c.Request.Context(), middleware.GetUserID(c), otherID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list, "limit": limit, "offset": offset})
}

// MarkConversationRead marks everything the user :id sent to the caller as read.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	senderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.MarkDirectRead(c.Request.Context(), middleware.GetUserID(c), senderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *MessageHandler) DeleteDirect(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteDirect(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) SendProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.SendProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.ProjectID = projectID
	msg, err := h.svc.SendProject(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) ListProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	list, err := h.svc.ListProjectMessages(c.Request.Context(), projectID, middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list, "limit": limit, "offset": offset})
}

func (h *MessageHandler) MarkProjectRead(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.MarkProjectRead(c.Request.Context(), projectID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *MessageHandler) DeleteProject(c *gin.Context) {
	id, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	err := h.svc.DeleteProjectMessage(c.Request.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
