package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"couplespace/focus/internal/middleware"
	"couplespace/focus/internal/model"
	"couplespace/focus/internal/service"
)

type FocusHandler struct {
	focusService *service.FocusService
}

type completeSessionRequest struct {
	FocusMinutes int `json:"focusMinutes"`
}

func NewFocusHandler(focusService *service.FocusService) *FocusHandler {
	return &FocusHandler{focusService: focusService}
}

func (h *FocusHandler) GetTimerState(c *gin.Context) {
	state, apiErr := h.focusService.GetTimerState(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	// A nil state means the user has never been initialized; the client
	// treats null as "use defaults".
	c.JSON(http.StatusOK, gin.H{"timerState": state})
}

func (h *FocusHandler) UpdateTimerState(c *gin.Context) {
	var req model.TimerStateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadJSON(c)
		return
	}

	state, apiErr := h.focusService.SaveTimerState(c.Request.Context(), middleware.UserID(c), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timerState": state})
}

func (h *FocusHandler) GetStats(c *gin.Context) {
	stats, apiErr := h.focusService.GetStats(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *FocusHandler) CompleteSession(c *gin.Context) {
	var req completeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadJSON(c)
		return
	}

	stats, apiErr := h.focusService.CompleteSession(c.Request.Context(), middleware.UserID(c), req.FocusMinutes)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": stats})
}
