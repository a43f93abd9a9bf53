package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/validator"
)

// bindJSON decodes and validates a JSON body into req, aborting the
// request with a generic validation error on failure. Field-level detail
// stays in the AppError's Details (logged server-side only), never in the
// client-visible message.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		apperr.Abort(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return false
	}
	if errs := validator.ValidateRequest(req); errs != nil {
		apperr.Abort(c, apperr.Wrap(apperr.CodeValidation, "request failed validation", fmt.Errorf("%v", errs)))
		return false
	}
	return true
}

func requiredParam(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if !validID(v) {
		apperr.Abort(c, apperr.Validation("invalid "+name))
		return "", false
	}
	return v, true
}
