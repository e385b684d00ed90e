package httpapi

import (
	"crypto/subtle"
	"net/http"

	"crm-interactions/internal/messages"
	"crm-interactions/internal/templates"
	"crm-interactions/pkg/logger"

	"github.com/gin-gonic/gin"
)

const HeaderWebhookSecret = "X-Webhook-Secret"

// RequireSharedSecret authenticates provider webhooks. An empty secret
// disables the check, which is only allowed in mock mode.
func RequireSharedSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}

// DeliveryReceipt applies a delivered/read receipt posted by the chat
// transport. Stale and duplicate receipts answer 200 with applied=false.
func (h Handlers) DeliveryReceipt(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messages not configured"})
		return
	}
	var r messages.Receipt
	if err := c.ShouldBindJSON(&r); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Messages.ApplyReceipt(c.Request.Context(), r)
	if err != nil {
		logger.FromGin(c).Warn("receipt rejected", "message_id", r.MessageID, "event", r.Event, "err", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// TemplateApproval receives the messaging platform's review result.
func (h Handlers) TemplateApproval(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	var a templates.Approval
	if err := c.ShouldBindJSON(&a); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t, err := h.Templates.ResolveApproval(c.Request.Context(), a)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
