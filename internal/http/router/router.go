package router

import (
	"closeout.app/engine/internal/http/handler"
	"closeout.app/engine/internal/http/handler/webhook"
	"closeout.app/engine/internal/service"
	"closeout.app/engine/internal/store"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	WebhookSecret string
	AdminAPIKey   string
}

func SetupRoutes(router *gin.Engine, services *service.Services, stores *store.Stores, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewTrackerWebhookHandler(services.Intake(), cfg.WebhookSecret)
	router.POST("/webhooks/tracker", webhookHandler.HandleClose)

	v1 := router.Group("/api/v1")
	{
		reportHandler := handler.NewReportHandler(
			stores.Reports(),
			services.Previews(),
			services.Edits(),
			services.Approvals(),
			cfg.AdminAPIKey,
		)
		ReportRouter(v1.Group("/reports"), reportHandler)
	}
}
