package errors

// Error codes shared by every layer of the service.
const (
	ErrInternal           = "INTERNAL"
	ErrNotFound           = "NOT_FOUND"
	ErrInvalidArgument    = "INVALID_ARGUMENT"
	ErrUnauthenticated    = "UNAUTHENTICATED"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrConflict           = "CONFLICT"
	ErrTimeout            = "TIMEOUT"
	ErrNotImplemented     = "NOT_IMPLEMENTED"
	ErrFailedPrecondition = "FAILED_PRECONDITION"
	ErrGatewayRejected    = "GATEWAY_REJECTED"
	ErrUnavailable        = "UNAVAILABLE"
)
