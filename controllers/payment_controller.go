package controllers

import (
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/middleware"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentController struct {
	txns    *services.TransactionService
	factory *services.GatewayFactory
}

func NewPaymentController(txns *services.TransactionService, factory *services.GatewayFactory) *PaymentController {
	return &PaymentController{txns: txns, factory: factory}
}

type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
	VPA   string `json:"vpa" binding:"omitempty,vpa"`
}

func (r CustomerRequest) toCustomer() gateways.Customer {
	return gateways.Customer{Name: r.Name, Email: r.Email, Phone: r.Phone, VPA: r.VPA}
}

type InitiatePaymentRequest struct {
	PaymentMethodID uint              `json:"payment_method_id" binding:"required"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency" binding:"required,len=3"`
	InvoiceID       *uint             `json:"invoice_id"`
	Customer        CustomerRequest   `json:"customer"`
	Description     string            `json:"description" binding:"max=255"`
	Metadata        map[string]string `json:"metadata"`
}

// POST /v1/payments
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	utils.LogInfo("InitiatePayment called")
	orgID := middleware.OrgID(c)

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid initiate request for org %d: %v", orgID, err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	res, err := pc.txns.InitiatePayment(c.Request.Context(), services.InitiatePaymentInput{
		OrganizationID:  orgID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		InvoiceID:       req.InvoiceID,
		Customer:        req.Customer.toCustomer(),
		Description:     req.Description,
		Metadata:        req.Metadata,
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to initiate payment")
		return
	}
	utils.Created(c, "Payment initiated", res)
}

type ListPaymentsQuery struct {
	Status    string `form:"status"`
	GatewayID uint   `form:"gateway_id"`
	Type      string `form:"type" binding:"omitempty,oneof=PAYMENT REFUND"`
}

// GET /v1/payments?status=&gateway_id=&type=&page=&limit=
func (pc *PaymentController) ListPayments(c *gin.Context) {
	orgID := middleware.OrgID(c)
	var q ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.BadRequest(c, "Invalid query", err.Error())
		return
	}

	pagination := utils.NewPagination(c)
	txns, total, err := pc.txns.ListTransactions(c.Request.Context(), orgID, repository.TransactionFilter{
		Status:    models.TransactionStatus(q.Status),
		GatewayID: q.GatewayID,
		Type:      models.TransactionType(q.Type),
	}, pagination.Offset, pagination.Limit)
	if err != nil {
		utils.RespondError(c, err, "Failed to list transactions")
		return
	}
	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, "Transactions retrieved", txns, pagination)
}

// GET /v1/payments/:id
func (pc *PaymentController) GetPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	txn, err := pc.txns.GetTransaction(c.Request.Context(), id)
	if err == nil {
		err = ownedBy(txn, middleware.OrgID(c))
	}
	if err != nil {
		utils.RespondError(c, err, "Failed to load transaction")
		return
	}

	refunds, err := pc.txns.ListRefunds(c.Request.Context(), txn.ID)
	if err != nil {
		utils.RespondError(c, err, "Failed to load refunds")
		return
	}
	utils.Success(c, "Transaction retrieved", gin.H{
		"transaction": txn,
		"refunds":     refunds,
	})
}

// POST /v1/payments/:id/verify
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	utils.LogInfo("VerifyPayment called")
	txn, ok := pc.owned(c)
	if !ok {
		return
	}
	updated, err := pc.txns.VerifyPayment(c.Request.Context(), txn.ID)
	if err != nil {
		utils.RespondError(c, err, "Failed to verify payment")
		return
	}
	utils.Success(c, "Payment verified", updated)
}

// GET|POST /v1/returns/:reference is where the provider sends the customer
// back. PhonePe and PayU arrive with a form POST. It carries no credentials,
// so only the status is exposed.
func (pc *PaymentController) PaymentReturn(c *gin.Context) {
	reference := c.Param("reference")
	utils.LogInfo("Customer returned for payment %s", reference)

	txn, err := pc.txns.RefreshPaymentStatus(c.Request.Context(), reference)
	if err != nil {
		utils.RespondError(c, err, "Failed to load payment")
		return
	}
	utils.Success(c, "Payment status", gin.H{
		"reference": txn.Reference,
		"status":    txn.Status,
		"amount":    txn.Amount,
		"currency":  txn.Currency,
	})
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" binding:"max=255"`
}

// POST /v1/payments/:id/refund
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	utils.LogInfo("RefundPayment called")
	txn, ok := pc.owned(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	res, err := pc.txns.ProcessRefund(c.Request.Context(), txn.ID, req.Amount, req.Reason)
	if err != nil {
		utils.RespondError(c, err, "Failed to refund payment")
		return
	}
	utils.Created(c, "Refund processed", res)
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// POST /v1/payments/:id/cancel
func (pc *PaymentController) CancelPayment(c *gin.Context) {
	utils.LogInfo("CancelPayment called")
	txn, ok := pc.owned(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	cancelled, err := pc.txns.CancelTransaction(c.Request.Context(), txn.ID, req.Reason)
	if err != nil {
		utils.RespondError(c, err, "Failed to cancel payment")
		return
	}
	utils.Success(c, "Payment cancelled", cancelled)
}

type OptimalGatewayQuery struct {
	Amount   string `form:"amount" binding:"required"`
	Currency string `form:"currency" binding:"required,len=3"`
	Method   string `form:"method" binding:"required,oneof=CARD UPI WALLET NETBANKING"`
}

// GET /v1/payments/optimal-gateway?amount=&currency=&method=
func (pc *PaymentController) OptimalGateway(c *gin.Context) {
	orgID := middleware.OrgID(c)
	var q OptimalGatewayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.BadRequest(c, "Invalid query", err.Error())
		return
	}
	amount, err := decimal.NewFromString(q.Amount)
	if err != nil {
		utils.BadRequest(c, "Invalid amount", err.Error())
		return
	}
	if err := utils.ValidateAmount(amount); err != nil {
		utils.RespondError(c, err, "Invalid amount")
		return
	}

	currency := utils.NormalizeCurrency(q.Currency)
	gw, err := pc.factory.GetOptimalGateway(c.Request.Context(), orgID, amount, currency, models.MethodType(q.Method))
	if err != nil {
		utils.RespondError(c, err, "Failed to select gateway")
		return
	}
	if gw == nil {
		utils.NotFound(c, "No gateway supports this payment")
		return
	}

	adapter, err := pc.factory.GetGatewayService(c.Request.Context(), gw.ID)
	if err != nil || adapter == nil {
		utils.RespondError(c, utils.ConfigurationError(utils.ErrGatewayUnavailable, err), "Failed to select gateway")
		return
	}
	utils.Success(c, "Optimal gateway selected", gin.H{
		"gateway": gw,
		"fee":     adapter.TransactionFees(amount, currency, models.MethodType(q.Method)).Total(amount),
	})
}

// owned loads the :id transaction and checks it belongs to the caller.
func (pc *PaymentController) owned(c *gin.Context) (*models.PaymentTransaction, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	txn, err := pc.txns.GetTransaction(c.Request.Context(), id)
	if err == nil {
		err = ownedBy(txn, middleware.OrgID(c))
	}
	if err != nil {
		utils.RespondError(c, err, "Failed to load transaction")
		return nil, false
	}
	return txn, true
}
