package routes

import (
	"github.com/Govind-619/PayRoute/middleware"
	"github.com/gin-gonic/gin"
)

// initAdminRoutes initializes the gateway operations routes
func initAdminRoutes(api *gin.RouterGroup, h Controllers, auth gin.HandlerFunc) {
	admin := api.Group("/admin", auth, middleware.AdminMiddleware())
	{
		admin.POST("/gateways/cache/clear", h.Admin.ClearCache)
		admin.GET("/gateways/:id/health", h.Admin.CheckHealth)
	}
}
