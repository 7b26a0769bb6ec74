package common

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs validator/v10 into echo's Context.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// BindAndValidate decodes the request into dst and runs its validate tags.
// Malformed bodies become a 400 invalid_url error.
func BindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &APIError{Status: http.StatusBadRequest, Type: TypeInvalidURL, Message: "Invalid request body.", Err: err}
	}
	return c.Validate(dst)
}
