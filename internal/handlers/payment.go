// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /payments
func (h *PaymentHandler) SubmitPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.SubmitPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Submit(c.Request.Context(), actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, payment)
}

// GET /payments/me
func (h *PaymentHandler) GetMyPayments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListForCandidate(c.Request.Context(), actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payments)
}

// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "payment")
	if !ok {
		return
	}

	payment, err := h.paymentService.Get(c.Request.Context(), id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payment)
}

// GET /admin/payments?status=pending
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var status *models.PaymentStatus
	if s := c.Query("status"); s != "" {
		ps := models.PaymentStatus(s)
		status = &ps
	}

	payments, total, err := h.paymentService.List(c.Request.Context(), status, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(payments, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/payments/:id/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "payment")
	if !ok {
		return
	}

	var req services.ReviewPaymentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Verify(c.Request.Context(), id, actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payment)
}

// PUT /admin/payments/:id/reject
func (h *PaymentHandler) RejectPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "payment")
	if !ok {
		return
	}

	var req services.RejectPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Reject(c.Request.Context(), id, actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payment)
}
