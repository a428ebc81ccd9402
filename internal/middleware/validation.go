package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	portalvalidator "github.com/jwalitptl/office-portal/pkg/validator"
)

// RegisterValidation makes gin's binding engine honour the validate tags on
// request models along with the portal-specific rules.
func RegisterValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.SetTagName("validate")
		portalvalidator.Register(v)
	}
}
