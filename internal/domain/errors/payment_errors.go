package errors

import (
	"fmt"

	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
)

var (
	// ErrPaymentNotFound indicates that no payment matches the given id
	ErrPaymentNotFound = pkgerrors.NewAppError(pkgerrors.ErrNotFound, "Payment not found", nil)

	// ErrStatusConflict indicates that a compare-and-swap status update lost the race
	ErrStatusConflict = pkgerrors.NewAppError(pkgerrors.ErrConflict, "payment status changed concurrently", nil)

	// ErrPayoutInProgress indicates that another payout attempt holds the claim
	ErrPayoutInProgress = pkgerrors.NewAppError(pkgerrors.ErrConflict, "payout already in progress", nil)
)

// ValidationError is returned before any external call when input is rejected.
type ValidationError struct {
	Message string
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Code() string {
	return pkgerrors.ErrInvalidArgument
}

func (e *ValidationError) Unwrap() error {
	return nil
}

// NewValidationError creates a new ValidationError
func NewValidationError(message string, details map[string]interface{}) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

// GatewayRejectedError carries a gateway result that was not a success.
type GatewayRejectedError struct {
	Code        string
	Description string
	Message     string
	HTTPStatus  int
	Raw         []byte
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s %s", e.Code, e.Description)
}

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Code() string {
	return pkgerrors.ErrConflict
}

func (e *InvalidTransitionError) Unwrap() error {
	return nil
}
