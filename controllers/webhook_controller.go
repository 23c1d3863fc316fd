package controllers

import (
	"net/http"
	"strconv"

	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
)

type WebhookController struct {
	webhooks *services.WebhookService
}

func NewWebhookController(webhooks *services.WebhookService) *WebhookController {
	return &WebhookController{webhooks: webhooks}
}

// POST /v1/webhooks/:provider/:gatewayId
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	id, ok := paramID(c, "gatewayId")
	if !ok {
		return
	}
	wc.handle(c, c.Param("provider"), id)
}

// POST /v1/upi/callback/:provider?gateway_id=
func (wc *WebhookController) HandleUPICallback(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("gateway_id"), 10, 64)
	if err != nil || id == 0 {
		utils.LogError("UPI callback for %s without gateway_id", c.Param("provider"))
		utils.BadRequest(c, "gateway_id is required", nil)
		return
	}
	wc.handle(c, c.Param("provider"), uint(id))
}

// handle acknowledges every authenticated notification with 200 so the
// provider stops retrying; only authentication and routing failures are
// reported back.
func (wc *WebhookController) handle(c *gin.Context, provider string, gatewayID uint) {
	body, err := c.GetRawData()
	if err != nil {
		utils.BadRequest(c, "Unable to read body", err.Error())
		return
	}

	res, err := wc.webhooks.Handle(c.Request.Context(), services.WebhookInput{
		Provider:  provider,
		GatewayID: gatewayID,
		Headers:   c.Request.Header,
		Body:      body,
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to process webhook")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"duplicate": res.Duplicate,
	})
}
