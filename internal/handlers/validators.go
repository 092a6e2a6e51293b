package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"swiftdash/internal/models"
)

// RegisterValidators installs the custom binding validations used by the
// request DTOs. Call once at startup.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
		return models.OrderStatus(fl.Field().String()).Valid()
	})
}
