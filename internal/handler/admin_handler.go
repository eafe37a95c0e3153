package handler

import (
	"net/http"

	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	reminders *service.ReminderService
}

func NewAdminHandler(reminders *service.ReminderService) *AdminHandler {
	return &AdminHandler{reminders: reminders}
}

// RunReminders runs the deadline check immediately. It is safe to call while
// the scheduled worker runs; already recorded thresholds are never resent.
func (h *AdminHandler) RunReminders(c *gin.Context) {
	sent, err := h.reminders.CheckDeadlines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}
