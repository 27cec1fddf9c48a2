package http

import (
	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// validationDetails maps field paths to the failed rule.
func validationDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		details["error"] = err.Error()
		return details
	}
	for _, fe := range errs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}
