package httpapi

import (
	"crm-interactions/internal/rbac"
	"crm-interactions/internal/telephony"

	"github.com/gin-gonic/gin"
)

// WebhookSecrets holds the shared secret per provider webhook.
type WebhookSecrets struct {
	PBX       string
	Templates string
	Transport string
}

// Register mounts the auth, webhook and /v1 routes. authMW verifies access
// tokens; RBAC is applied per group here.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc, secrets WebhookSecrets) {
	if h.DevTokens {
		r.POST("/auth/token", h.IssueToken)
	}
	if h.Auth != nil {
		r.POST("/auth/refresh", h.RefreshToken)
	}

	wh := r.Group("/webhooks")
	{
		cti := telephony.CTIWebhookHandler{}
		if h.Calls != nil {
			cti.Calls = h.Calls
		}
		wh.POST("/pbx/cti", RequireSharedSecret(secrets.PBX), cti.Handle)
		wh.POST("/templates/approval", RequireSharedSecret(secrets.Templates), h.TemplateApproval)
		wh.POST("/transport/receipts", RequireSharedSecret(secrets.Transport), h.DeliveryReceipt)
	}

	v1 := r.Group("/v1")
	v1.Use(authMW)

	staff := v1.Group("", rbac.RequireStaff())
	{
		staff.POST("/messages", h.SendMessage)
		staff.POST("/messages/inbound", h.RecordInbound)
		staff.GET("/messages/:id", h.GetMessage)
		staff.GET("/messages/:id/status", h.MessageStatus)
		staff.POST("/messages/:id/retry", h.RetryMessage)
		staff.GET("/rooms/:room/messages", h.RoomMessages)
		staff.POST("/rooms/:room/read", h.MarkRoomRead)

		staff.POST("/calls", h.InitiateCall)
		staff.GET("/calls/:id", h.GetCall)
		staff.POST("/calls/:id/customer", h.ResolveCustomer)
		staff.POST("/calls/:id/ticket", h.CreateTicket)

		staff.GET("/templates", h.ListTemplates)
		staff.GET("/templates/:id", h.GetTemplate)
		staff.GET("/templates/:id/status", h.TemplateStatus)
		staff.POST("/templates/:id/preview", h.PreviewTemplate)
		staff.POST("/templates/:id/send", h.SendTemplate)

		staff.GET("/ws", h.Stream)
	}

	// Submitting templates and reading reports is for sales and project management.
	managers := v1.Group("", rbac.RequireAnyRole(rbac.RoleSales, rbac.RoleProjectManager))
	{
		managers.POST("/templates", h.SubmitTemplate)
		managers.GET("/reports/summary", h.ReportSummary)
	}

	admin := v1.Group("", rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.GET("/audit/:entity/:id", h.History)
	}
}
