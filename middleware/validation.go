package middleware

import (
	"github.com/Govind-619/PayRoute/upi"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the custom binding tags used by request bodies:
//
//	vpa: a well formed UPI address on a known handle
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("vpa", func(fl validator.FieldLevel) bool {
		return upi.IsValidVPA(fl.Field().String())
	})
}
