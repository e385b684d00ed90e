package httpapi

import (
	"net/http"

	"crm-interactions/internal/templates"

	"github.com/gin-gonic/gin"
)

func (h Handlers) SubmitTemplate(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	var req templates.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.SubmittedBy = actor(c)
	t, err := h.Templates.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h Handlers) ListTemplates(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	out, err := h.Templates.List(c.Request.Context(), templates.Status(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

func (h Handlers) GetTemplate(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	t, err := h.Templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t, "placeholders": templates.Placeholders(t.Content)})
}

func (h Handlers) TemplateStatus(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	st, err := h.Templates.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": st})
}

type previewRequest struct {
	Values []string `json:"values"`
}

func (h Handlers) PreviewTemplate(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	text, err := h.Templates.Preview(c.Request.Context(), c.Param("id"), req.Values)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

type sendTemplateRequest struct {
	Room      string   `json:"room"`
	SubjectID string   `json:"subject_id"`
	Values    []string `json:"values"`
}

func (h Handlers) SendTemplate(c *gin.Context) {
	if h.Templates == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "templates not configured"})
		return
	}
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.Templates.Send(c.Request.Context(), c.Param("id"), templates.SendRequest{
		Room:        req.Room,
		SubjectID:   req.SubjectID,
		Values:      req.Values,
		ActorUserID: actor(c),
	})
	respondSent(c, m, err)
}
