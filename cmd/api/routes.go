package main

import (
	"net/http"

	"crm-interactions/internal/auth"
	"crm-interactions/internal/config"
	"crm-interactions/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, a *app, authManager *auth.Manager) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := a.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := httpapi.Handlers{
		Auth:      authManager,
		Messages:  a.messages,
		Calls:     a.calls,
		Templates: a.templates,
		Reports:   a.reports,
		Audit:     a.audit,
		Hub:       a.hub,
		DevTokens: !cfg.IsLive(),
	}
	httpapi.Register(r, h, auth.RequireAccessToken(authManager), httpapi.WebhookSecrets{
		PBX:       cfg.PBX.WebhookSecret,
		Templates: cfg.Templates.WebhookSecret,
		Transport: cfg.Transport.WebhookSecret,
	})
}
