package controllers

import (
	"time"

	"github.com/Govind-619/PayRoute/middleware"
	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentLinkController struct {
	links *services.PaymentLinkService
}

func NewPaymentLinkController(links *services.PaymentLinkService) *PaymentLinkController {
	return &PaymentLinkController{links: links}
}

type CreateLinkRequest struct {
	Amount         *decimal.Decimal `json:"amount"`
	Currency       string           `json:"currency" binding:"omitempty,len=3"`
	InvoiceID      *uint            `json:"invoice_id"`
	MaxUses        int              `json:"max_uses" binding:"omitempty,min=1,max=1000"`
	ExpiresInHours int              `json:"expires_in_hours" binding:"omitempty,min=1"`
	Description    string           `json:"description" binding:"max=255"`
}

// POST /v1/payment-links
func (lc *PaymentLinkController) CreateLink(c *gin.Context) {
	utils.LogInfo("CreateLink called")
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	link, err := lc.links.CreateLink(c.Request.Context(), services.CreateLinkInput{
		OrganizationID: middleware.OrgID(c),
		Amount:         req.Amount,
		Currency:       req.Currency,
		InvoiceID:      req.InvoiceID,
		MaxUses:        req.MaxUses,
		TTL:            time.Duration(req.ExpiresInHours) * time.Hour,
		Description:    req.Description,
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to create payment link")
		return
	}
	utils.Created(c, "Payment link created", link)
}

// GET /v1/payment-links/:token
func (lc *PaymentLinkController) GetLink(c *gin.Context) {
	link, err := lc.links.ResolveLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.RespondError(c, err, "Failed to load payment link")
		return
	}
	utils.Success(c, "Payment link retrieved", gin.H{
		"amount":      link.Amount,
		"currency":    link.Currency,
		"description": link.Description,
		"expires_at":  link.ExpiresAt,
	})
}

type PayLinkRequest struct {
	PaymentMethodID uint            `json:"payment_method_id" binding:"required"`
	Customer        CustomerRequest `json:"customer"`
}

// POST /v1/payment-links/:token/pay
func (lc *PaymentLinkController) PayLink(c *gin.Context) {
	utils.LogInfo("PayLink called")
	var req PayLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	res, err := lc.links.RedeemLink(c.Request.Context(), c.Param("token"), services.RedeemLinkInput{
		PaymentMethodID: req.PaymentMethodID,
		Customer:        req.Customer.toCustomer(),
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to pay link")
		return
	}
	utils.Created(c, "Payment initiated", res)
}
