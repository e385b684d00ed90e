package telephony

import (
	"context"
	"net/http"
	"strings"

	"crm-interactions/internal/calls"
	"crm-interactions/internal/lifecycle"
	"crm-interactions/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallEvents is the part of the call service the CTI webhook drives.
type CallEvents interface {
	RegisterCall(ctx context.Context, req calls.RegisterRequest) (calls.Call, bool, error)
	ApplyStatusEvent(ctx context.Context, ev calls.StatusEvent) (lifecycle.Outcome, error)
	ResolveCustomerForCall(ctx context.Context, callID string) (calls.Call, error)
}

// CTIWebhookHandler converts PBX call-state webhooks into call operations.
// No business logic here.
type CTIWebhookHandler struct {
	Calls CallEvents
}

func (h CTIWebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call service not configured"})
		return
	}

	var (
		ev  CTIEvent
		err error
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err = c.ShouldBindJSON(&ev); err == nil {
			err = ev.Validate()
		}
	} else {
		ev, err = ParseCTIForm(c.Request)
	}
	if err != nil {
		log.Warn("cti webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid cti event"})
		return
	}

	ctx := c.Request.Context()
	if ev.Event == CTIEventNewCall {
		call, created, err := h.Calls.RegisterCall(ctx, ev.RegisterRequest())
		if err != nil {
			log.Error("cti register call failed", "call_id", ev.CallID, "err", err)
			c.AbortWithStatusJSON(lifecycle.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		if created && call.Direction == calls.CallDirectionInbound {
			// Lookup failures do not fail the webhook; an operator can resolve later.
			if resolved, err := h.Calls.ResolveCustomerForCall(ctx, call.ID); err != nil {
				log.Warn("cti customer lookup failed", "call_id", call.ID, "err", err)
			} else {
				call = resolved
			}
		}
		c.JSON(http.StatusOK, gin.H{"call": call, "created": created})
		return
	}

	se, _ := ev.StatusEvent()
	out, err := h.Calls.ApplyStatusEvent(ctx, se)
	if err != nil {
		log.Warn("cti status event failed", "call_id", ev.CallID, "event", ev.Event, "err", err)
		c.AbortWithStatusJSON(lifecycle.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}
