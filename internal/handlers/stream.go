package handlers

import (
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/events"
	"swiftdash/internal/middleware"
	"swiftdash/internal/orders"
	"swiftdash/internal/principal"
)

// streamRoom relays a room subscription over SSE until the client disconnects
// or the room is force-closed on a terminal transition.
func streamRoom(c *gin.Context, bus *events.Bus, topic events.Topic) {
	sub := bus.Subscribe(topic)
	defer sub.Close()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return false
			}
			_ = sse.Encode(w, sse.Event{
				Id:    evt.ID,
				Event: evt.Name,
				Data:  evt,
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// StreamOrder attaches the caller to one order's room.
func StreamOrder(bus *events.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id/stream"
		defer handlePanic(c, route)

		orderID, ok := orderIDParam(c, route)
		if !ok {
			return
		}
		streamRoom(c, bus, events.OrderTopic(orderID))
	}
}

// StreamBranch attaches a delivery partner to their branch room, where new
// and claimed orders are announced.
func StreamBranch(bus *events.Bus, dir orders.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /branches/:id/stream"
		defer handlePanic(c, route)

		caller, ok := middleware.CurrentPrincipal(c)
		if !ok || caller.Role != principal.RoleDeliveryPartner {
			respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "delivery partner token required")
			return
		}

		branchID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid id")
			return
		}

		partner, err := dir.FindDeliveryPartner(c.Request.Context(), caller.ID)
		if err != nil {
			respondWithDomainError(c, route, err)
			return
		}
		if partner.BranchID != branchID {
			respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "partner does not belong to this branch")
			return
		}

		streamRoom(c, bus, events.BranchTopic(branchID))
	}
}

// StreamCustomer attaches a customer to their own channel.
func StreamCustomer(bus *events.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /customers/me/stream"
		defer handlePanic(c, route)

		caller, ok := middleware.CurrentPrincipal(c)
		if !ok || caller.Role != principal.RoleCustomer {
			respondWithError(c, http.StatusForbidden, route, codeUnauthorized, "customer token required")
			return
		}
		streamRoom(c, bus, events.CustomerTopic(caller.ID))
	}
}
