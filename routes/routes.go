package routes

import (
	"net/http"

	"github.com/Govind-619/PayRoute/controllers"
	"github.com/Govind-619/PayRoute/middleware"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
)

// Controllers groups every HTTP handler the router mounts.
type Controllers struct {
	Payments     *controllers.PaymentController
	Webhooks     *controllers.WebhookController
	UPI          *controllers.UPIController
	PaymentLinks *controllers.PaymentLinkController
	Admin        *controllers.AdminGatewayController
}

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter(h Controllers, jwtSecret string) *gin.Engine {
	if err := middleware.RegisterValidators(); err != nil {
		utils.LogError("Failed to register request validators: %v", err)
	}

	router := gin.New()
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "Route not found")
	})

	api := router.Group("/v1")
	{
		initCallbackRoutes(api, h)
		initPaymentRoutes(api, h, middleware.AuthMiddleware(jwtSecret))
		initAdminRoutes(api, h, middleware.AuthMiddleware(jwtSecret))
	}

	return router
}

// initCallbackRoutes mounts the unauthenticated endpoints: provider
// notifications, the customer return page and public payment links.
func initCallbackRoutes(api *gin.RouterGroup, h Controllers) {
	api.POST("/webhooks/:provider/:gatewayId", h.Webhooks.HandleWebhook)
	api.POST("/upi/callback/:provider", h.Webhooks.HandleUPICallback)
	api.GET("/returns/:reference", h.Payments.PaymentReturn)
	api.POST("/returns/:reference", h.Payments.PaymentReturn)

	api.GET("/payment-links/:token", h.PaymentLinks.GetLink)
	api.POST("/payment-links/:token/pay", h.PaymentLinks.PayLink)
}
