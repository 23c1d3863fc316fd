package controllers

import (
	"time"

	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
)

type AdminGatewayController struct {
	factory       *services.GatewayFactory
	healthTimeout time.Duration
}

func NewAdminGatewayController(factory *services.GatewayFactory, healthTimeout time.Duration) *AdminGatewayController {
	if healthTimeout <= 0 {
		healthTimeout = utils.DefaultGatewayTimeout
	}
	return &AdminGatewayController{factory: factory, healthTimeout: healthTimeout}
}

// POST /v1/admin/gateways/cache/clear
func (ac *AdminGatewayController) ClearCache(c *gin.Context) {
	utils.LogInfo("ClearCache called")
	ac.factory.ClearCache()
	utils.Success(c, "Gateway cache cleared", nil)
}

// GET /v1/admin/gateways/:id/health
func (ac *AdminGatewayController) CheckHealth(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	healthy, err := ac.factory.CheckHealth(c.Request.Context(), id, ac.healthTimeout)
	if err != nil {
		utils.RespondError(c, err, "Failed to check gateway health")
		return
	}
	utils.Success(c, "Gateway health checked", gin.H{
		"gateway_id": id,
		"healthy":    healthy,
	})
}
