package routes

import (
	"github.com/gin-gonic/gin"
)

// initPaymentRoutes mounts the organization scoped API.
func initPaymentRoutes(api *gin.RouterGroup, h Controllers, auth gin.HandlerFunc) {
	payments := api.Group("/payments", auth)
	{
		payments.POST("", h.Payments.InitiatePayment)
		payments.GET("", h.Payments.ListPayments)
		payments.GET("/optimal-gateway", h.Payments.OptimalGateway)
		payments.GET("/:id", h.Payments.GetPayment)
		payments.POST("/:id/verify", h.Payments.VerifyPayment)
		payments.POST("/:id/refund", h.Payments.RefundPayment)
		payments.POST("/:id/cancel", h.Payments.CancelPayment)
	}

	api.POST("/payment-links", auth, h.PaymentLinks.CreateLink)

	upiGroup := api.Group("/upi", auth)
	{
		upiGroup.POST("/validate-vpa", h.UPI.ValidateVPA)
		upiGroup.POST("/qr", h.UPI.GenerateQR)
		upiGroup.GET("/transactions/:id", h.UPI.GetTransaction)
	}
}
