package controllers

import (
	"github.com/Govind-619/PayRoute/middleware"
	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/upi"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type UPIController struct {
	upi  *upi.Service
	txns *services.TransactionService
}

func NewUPIController(service *upi.Service, txns *services.TransactionService) *UPIController {
	return &UPIController{upi: service, txns: txns}
}

// POST /v1/upi/validate-vpa
func (uc *UPIController) ValidateVPA(c *gin.Context) {
	var req struct {
		VPA string `json:"vpa" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "vpa is required", err.Error())
		return
	}

	valid := upi.IsValidVPA(req.VPA)
	utils.LogDebug("VPA %s valid=%v", req.VPA, valid)
	utils.Success(c, "VPA checked", gin.H{
		"vpa":    req.VPA,
		"valid":  valid,
		"handle": upi.Handle(req.VPA),
	})
}

type QRRequest struct {
	VPA       string          `json:"vpa" binding:"required,vpa"`
	Name      string          `json:"name" binding:"required,max=100"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=35"`
	Note      string          `json:"note" binding:"max=80"`
}

// POST /v1/upi/qr
func (uc *UPIController) GenerateQR(c *gin.Context) {
	utils.LogInfo("GenerateQR called")
	var req QRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	qr, err := upi.GenerateDynamicQR(req.VPA, req.Name, req.Amount, req.Reference, req.Note)
	if err != nil {
		utils.RespondError(c, err, "Failed to generate QR code")
		return
	}
	utils.Success(c, "QR code generated", qr)
}

// GET /v1/upi/transactions/:id
func (uc *UPIController) GetTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	txn, err := uc.upi.Get(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err, "Failed to load UPI transaction")
		return
	}

	// UPI rows are scoped through the payment they belong to.
	if txn.PaymentTransactionID == nil {
		utils.NotFound(c, "UPI transaction not found")
		return
	}
	payment, err := uc.txns.GetTransaction(c.Request.Context(), *txn.PaymentTransactionID)
	if err == nil {
		err = ownedBy(payment, middleware.OrgID(c))
	}
	if err != nil {
		utils.RespondError(c, utils.NotFoundError("UPI transaction not found", err), "Failed to load UPI transaction")
		return
	}
	utils.Success(c, "UPI transaction retrieved", txn)
}
