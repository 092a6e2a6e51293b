package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/middleware"
	"swiftdash/internal/models"
	"swiftdash/internal/orders"
	"swiftdash/internal/principal"
)

/* =========================
   REQUEST DTOs
========================= */

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Units     int    `json:"units" binding:"required,gt=0"`
}

type addressRequest struct {
	Title     string  `json:"title"`
	Detail    string  `json:"detail" binding:"required"`
	Note      string  `json:"note"`
	Latitude  float64 `json:"latitude" binding:"latitude"`
	Longitude float64 `json:"longitude" binding:"longitude"`
}

func (r *addressRequest) toModel() models.Address {
	return models.Address{
		Title:  r.Title,
		Detail: r.Detail,
		Note:   r.Note,
		Location: models.GeoPoint{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		},
	}
}

type createOrderRequest struct {
	BranchID        string             `json:"branchId" binding:"required"`
	Items           []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string             `json:"paymentMethod" binding:"required,oneof=cod online"`
	DeliveryAddress *addressRequest    `json:"deliveryAddress"`
	DeliveryFee     *float64           `json:"deliveryFee"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" binding:"latitude"`
	Longitude float64 `json:"longitude" binding:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
}

func (r *locationRequest) toModel() models.PartnerLocation {
	return models.PartnerLocation{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Accuracy:  r.Accuracy,
		Speed:     r.Speed,
		Heading:   r.Heading,
	}
}

type updateStatusRequest struct {
	Status   string           `json:"status" binding:"required,orderstatus"`
	Location *locationRequest `json:"location"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

/* =========================
   ORDER LIFECYCLE
========================= */

// CreateOrder places a new order for the calling customer.
func CreateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		caller, ok := middleware.CurrentPrincipal(c)
		if !ok || caller.Role != principal.RoleCustomer {
			respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "customer token required")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid request body")
			return
		}

		branchID, err := primitive.ObjectIDFromHex(req.BranchID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid branchId")
			return
		}

		input := orders.CreateOrderInput{
			CustomerID:          caller.ID,
			BranchID:            branchID,
			PaymentMethod:       req.PaymentMethod,
			DeliveryFeeOverride: req.DeliveryFee,
		}
		for _, item := range req.Items {
			productID, err := primitive.ObjectIDFromHex(item.ProductID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid productId")
				return
			}
			input.Items = append(input.Items, orders.CreateItemInput{ProductID: productID, Units: item.Units})
		}
		if req.DeliveryAddress != nil {
			address := req.DeliveryAddress.toModel()
			input.DeliveryAddress = &address
		}

		order, err := svc.Create(c.Request.Context(), input)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

// GetOrder returns one order.
func GetOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		orderID, ok := orderIDParam(c, route)
		if !ok {
			return
		}
		order, err := svc.Get(c.Request.Context(), orderID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// AcceptOrder claims a pending order for the calling delivery partner.
func AcceptOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/accept"
		defer handlePanic(c, route)

		caller, orderID, ok := partnerAndOrder(c, route)
		if !ok {
			return
		}
		order, err := svc.Accept(c.Request.Context(), orderID, caller.ID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// PickupOrder marks the order picked up by the bound partner.
func PickupOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/pickup"
		defer handlePanic(c, route)

		caller, orderID, ok := partnerAndOrder(c, route)
		if !ok {
			return
		}
		order, err := svc.Pickup(c.Request.Context(), orderID, caller.ID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// MarkDelivered moves the order to awaiting customer confirmation.
func MarkDelivered(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/delivered"
		defer handlePanic(c, route)

		caller, orderID, ok := partnerAndOrder(c, route)
		if !ok {
			return
		}
		order, err := svc.MarkDelivered(c.Request.Context(), orderID, caller.ID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// ConfirmDelivery finalizes the order; only its customer may confirm.
func ConfirmDelivery(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/confirm"
		defer handlePanic(c, route)

		caller, ok := middleware.CurrentPrincipal(c)
		if !ok || caller.Role != principal.RoleCustomer {
			respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "customer token required")
			return
		}
		orderID, ok := orderIDParam(c, route)
		if !ok {
			return
		}
		order, err := svc.Confirm(c.Request.Context(), orderID, caller.ID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// CancelOrder cancels a non-terminal order. Customers may cancel their own
// orders, partners the orders bound to them, admins any order.
func CancelOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/cancel"
		defer handlePanic(c, route)

		caller, ok := middleware.CurrentPrincipal(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, codeUnauthorized, "unauthorized")
			return
		}
		orderID, ok := orderIDParam(c, route)
		if !ok {
			return
		}

		var req cancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "cancellation reason is required")
			return
		}

		order, err := svc.Get(c.Request.Context(), orderID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		switch caller.Role {
		case principal.RoleCustomer:
			if order.CustomerID != caller.ID {
				respondWithDomainError(c, route, models.ErrUnauthorized)
				return
			}
		case principal.RoleDeliveryPartner:
			if !order.IsBoundPartner(caller.ID) {
				respondWithDomainError(c, route, models.ErrUnauthorized)
				return
			}
		}

		cancelled, err := svc.Cancel(c.Request.Context(), orderID, req.Reason)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cancelled)
	}
}

// UpdateOrderStatus is the generic status-set path for the bound partner.
func UpdateOrderStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:id/status"
		defer handlePanic(c, route)

		caller, orderID, ok := partnerAndOrder(c, route)
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid request body")
			return
		}

		var loc *models.PartnerLocation
		if req.Location != nil {
			l := req.Location.toModel()
			loc = &l
		}

		order, err := svc.UpdateStatus(c.Request.Context(), orderID, caller.ID,
			models.OrderStatus(req.Status), loc)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// UpdateLocation records the bound partner's position.
func UpdateLocation(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/location"
		defer handlePanic(c, route)

		caller, orderID, ok := partnerAndOrder(c, route)
		if !ok {
			return
		}

		var req locationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid request body")
			return
		}

		order, err := svc.UpdateLocation(c.Request.Context(), orderID, caller.ID, req.toModel())
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// DeleteOrder is the administrative hard remove.
func DeleteOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, route)

		orderID, ok := orderIDParam(c, route)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), orderID); err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

/* =========================
   SHARED HELPERS
========================= */

func orderIDParam(c *gin.Context, route string) (primitive.ObjectID, bool) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid id")
		return primitive.NilObjectID, false
	}
	return orderID, true
}

func partnerAndOrder(c *gin.Context, route string) (principal.Principal, primitive.ObjectID, bool) {
	caller, ok := middleware.CurrentPrincipal(c)
	if !ok || caller.Role != principal.RoleDeliveryPartner {
		respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "delivery partner token required")
		return principal.Principal{}, primitive.NilObjectID, false
	}
	orderID, ok := orderIDParam(c, route)
	if !ok {
		return principal.Principal{}, primitive.NilObjectID, false
	}
	return caller, orderID, true
}
