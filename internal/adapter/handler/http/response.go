package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
	"go.uber.org/zap"
)

// writeError maps service errors to JSON responses. Gateway rejections are
// handled by the caller because their shape depends on the endpoint.
func writeError(c echo.Context, logger *zap.Logger, err error) error {
	var validationErr *domainErrors.ValidationError
	var gatewayErr *gateway.Error

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   validationErr.Message,
			"code":    validationErr.Code(),
			"details": validationErr.Details,
		})
	case errors.As(err, &gatewayErr):
		logger.Error("Payment gateway request failed",
			zap.String("gateway_error_code", gatewayErr.Code),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":   "Payment gateway request failed",
			"code":    gatewayErr.Code,
			"message": gatewayErr.Message,
			"details": gatewayErr.Details,
		})
	}

	code := pkgerrors.CodeOf(err)
	if code == pkgerrors.ErrInternal {
		pkgerrors.LogError(logger, err, "Request failed",
			zap.String("path", c.Request().URL.Path))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Internal server error",
			"code":  code,
		})
	}

	httpErr := pkgerrors.ToHTTPError(err)
	return c.JSON(httpErr.Code, echo.Map{
		"error": httpErr.Message,
		"code":  code,
	})
}

// writeGatewayBody returns a gateway response as received.
func writeGatewayBody(c echo.Context, status int, res *gateway.Result) error {
	if status == 0 {
		status = http.StatusOK
	}
	if len(res.Raw) > 0 {
		return c.JSONBlob(status, res.Raw)
	}
	return c.JSON(status, res)
}

// writeRejectedVerbatim passes a gateway rejection through unchanged.
func writeRejectedVerbatim(c echo.Context, rejected *domainErrors.GatewayRejectedError) error {
	status := rejected.HTTPStatus
	if status < http.StatusBadRequest {
		status = http.StatusBadRequest
	}
	if len(rejected.Raw) > 0 {
		return c.JSONBlob(status, rejected.Raw)
	}
	return c.JSON(status, echo.Map{
		"error":   rejected.Message,
		"code":    rejected.Code,
		"message": rejected.Description,
	})
}
