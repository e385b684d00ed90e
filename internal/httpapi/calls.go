package httpapi

import (
	"net/http"

	"crm-interactions/internal/calls"

	"github.com/gin-gonic/gin"
)

func (h Handlers) InitiateCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req calls.PlaceCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AgentUserID == "" {
		req.AgentUserID = actor(c)
	}
	call, err := h.Calls.InitiateCall(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": call, "state": call.State()})
}

func (h Handlers) ResolveCustomer(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	call, err := h.Calls.ResolveCustomerForCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

type createTicketRequest struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

func (h Handlers) CreateTicket(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, ticket, err := h.Calls.CreateTicketForCall(c.Request.Context(), c.Param("id"), req.Title, req.Note, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": call, "ticket": ticket})
}
