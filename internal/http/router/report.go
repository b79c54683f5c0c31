package router

import (
	"closeout.app/engine/internal/http/handler"
	"github.com/gin-gonic/gin"
)

// ReportRouter sets up the operator report routes. Everything here
// requires the admin API key.
func ReportRouter(rg *gin.RouterGroup, h *handler.ReportHandler) {
	rg.Use(h.RequireAdminAPIKey())
	{
		rg.GET("", h.List)
		rg.GET("/:id", h.Get)
		rg.GET("/:id/preview", h.Preview)
		rg.POST("/:id/edits", h.StartEdit)
		rg.POST("/:id/edits/field", h.SubmitField)
		rg.DELETE("/:id/edits", h.CancelEdit)
		rg.POST("/:id/approve", h.Approve)
		rg.POST("/:id/close", h.Close)
	}
}
