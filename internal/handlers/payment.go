package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/models"
	"swiftdash/internal/orders"
)

type confirmPaymentRequest struct {
	OrderID        string  `json:"orderId" binding:"required"`
	GatewayOrderID string  `json:"gatewayOrderId" binding:"required"`
	PaymentID      string  `json:"paymentId" binding:"required"`
	Signature      string  `json:"signature"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
}

// ConfirmPayment consumes the verified payment-confirmation callback. The
// gateway signature is verified upstream; this endpoint only records the
// outcome and rejects duplicates.
func ConfirmPayment(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/confirm"
		defer handlePanic(c, route)

		var req confirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid request body")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid orderId")
			return
		}

		order, err := svc.ConfirmPayment(c.Request.Context(), orderID, models.PaymentDetails{
			GatewayOrderID: req.GatewayOrderID,
			PaymentID:      req.PaymentID,
			Signature:      req.Signature,
			Amount:         req.Amount,
		})
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
