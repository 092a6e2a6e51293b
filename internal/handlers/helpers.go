package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"swiftdash/internal/models"
)

// Stable machine-readable error codes exposed to clients. Storage-layer
// details and stack traces never leave the process.
const (
	codeValidation        = "VALIDATION_ERROR"
	codeNotFound          = "NOT_FOUND"
	codeUnauthorized      = "UNAUTHORIZED"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeInsufficientStock = "INSUFFICIENT_STOCK"
	codeConflict          = "CONFLICT"
	codeRateLimited       = "RATE_LIMITED"
	codeInternal          = "INTERNAL_ERROR"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		logrus.WithField("route", route).Errorf("panic recovered: %v", r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  codeInternal,
		})
	}
}

func respondWithError(c *gin.Context, status int, route, code, message string) {
	logrus.WithFields(logrus.Fields{"route": route, "status": status, "code": code}).
		Info(message)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// respondWithDomainError maps a service error to its stable code.
func respondWithDomainError(c *gin.Context, route string, err error) {
	var (
		validationErr models.ValidationError
		notFoundErr   models.ProductNotFoundError
		stockErr      models.InsufficientStockError
		transitionErr models.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		respondWithError(c, http.StatusBadRequest, route, codeValidation, validationErr.Message)
	case errors.Is(err, models.ErrCancelReasonRequired),
		errors.Is(err, models.ErrCODLimitExceeded):
		respondWithError(c, http.StatusBadRequest, route, codeValidation, err.Error())
	case errors.As(err, &notFoundErr):
		respondWithError(c, http.StatusNotFound, route, codeNotFound, notFoundErr.Error())
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrCustomerNotFound),
		errors.Is(err, models.ErrPartnerNotFound),
		errors.Is(err, models.ErrBranchNotFound):
		respondWithError(c, http.StatusNotFound, route, codeNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		respondWithError(c, http.StatusForbidden, route, codeUnauthorized, err.Error())
	case errors.As(err, &transitionErr):
		respondWithError(c, http.StatusConflict, route, codeInvalidTransition, transitionErr.Error())
	case errors.As(err, &stockErr):
		respondWithError(c, http.StatusConflict, route, codeInsufficientStock, stockErr.Error())
	case errors.Is(err, models.ErrDuplicatePayment):
		respondWithError(c, http.StatusConflict, route, codeConflict, err.Error())
	case errors.Is(err, models.ErrRateLimited):
		respondWithError(c, http.StatusTooManyRequests, route, codeRateLimited, err.Error())
	default:
		logrus.WithField("route", route).WithError(err).Error("unhandled error")
		respondWithError(c, http.StatusInternalServerError, route, codeInternal, "internal server error")
	}
}
