package httpapi

import (
	"errors"
	"net/http"

	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Room      string `json:"room"`
	SubjectID string `json:"subject_id"`
	Text      string `json:"text"`
}

// SendMessage sends an operator message. A transport failure answers 502 and
// still returns the stored message, now failed, so the UI can offer a retry.
func (h Handlers) SendMessage(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.Messages.Send(c.Request.Context(), messages.SendRequest{
		Room:        req.Room,
		SubjectID:   req.SubjectID,
		Text:        req.Text,
		ActorUserID: actor(c),
	})
	respondSent(c, m, err)
}

func (h Handlers) RetryMessage(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	m, err := h.Messages.Retry(c.Request.Context(), c.Param("id"), actor(c))
	respondSent(c, m, err)
}

func respondSent(c *gin.Context, m messages.Message, err error) {
	if errors.Is(err, lifecycle.ErrExternalService) && m.ID != "" {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "message": m})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) RecordInbound(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.Messages.RecordInbound(c.Request.Context(), messages.InboundRequest{
		Room:      req.Room,
		SubjectID: req.SubjectID,
		Text:      req.Text,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) GetMessage(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	m, err := h.Messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) MessageStatus(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	st, err := h.Messages.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": st})
}

func (h Handlers) RoomMessages(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	out, err := h.Messages.Room(c.Request.Context(), c.Param("room"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h Handlers) MarkRoomRead(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	n, err := h.Messages.MarkRoomRead(c.Request.Context(), c.Param("room"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
