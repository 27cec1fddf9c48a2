package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/middleware/auth"
	"github.com/wekeepgrowing/settlement-service/internal/usecase"
	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
	"go.uber.org/zap"
)

// mutationTimeout bounds gateway and payout work that must finish even when
// the caller disconnects, so a gateway success is always recorded.
const mutationTimeout = 5 * time.Minute

// detached returns a context that survives the request but not the bound.
func detached(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request().Context()), mutationTimeout)
}

// PaymentService is the synchronous payment API.
type PaymentService interface {
	PreAuthorize(ctx context.Context, userID uuid.UUID, req *entity.PreAuthorizeRequest) (*gateway.Result, *model.Payment, error)
	Capture(ctx context.Context, userID uuid.UUID, gatewayID string, req *entity.CaptureRequest) (*gateway.Result, error)
	History(ctx context.Context, filter entity.HistoryFilter) (*entity.PaymentHistory, error)
	Get(ctx context.Context, userID, paymentID uuid.UUID) (*model.Payment, error)
	Events(ctx context.Context, userID, paymentID uuid.UUID) ([]*model.PaymentEvent, error)
	Transfers(ctx context.Context, userID, paymentID uuid.UUID) ([]*model.CryptoTransfer, error)
	RetryPayout(ctx context.Context, userID, paymentID uuid.UUID) (*usecase.PayoutResult, error)
}

// BackOfficeService runs follow-up gateway operations.
type BackOfficeService interface {
	Manage(ctx context.Context, actor uuid.UUID, gatewayID string, req *entity.ManageRequest) (*gateway.Result, error)
}

type PaymentHandler struct {
	payments   PaymentService
	backOffice BackOfficeService
	logger     *zap.Logger
}

func NewPaymentHandler(payments PaymentService, backOffice BackOfficeService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		backOffice: backOffice,
		logger:     logger,
	}
}

// historyQuery is the body of POST /history.
type historyQuery struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// PreAuthorize handles POST /api/v1/payments/pre-authorize
func (h *PaymentHandler) PreAuthorize(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil || user == nil {
		return err
	}

	var req entity.PreAuthorizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  pkgerrors.ErrInvalidArgument,
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "Validation failed",
			"code":    pkgerrors.ErrInvalidArgument,
			"details": validationDetails(err),
		})
	}

	ctx, cancel := detached(c)
	defer cancel()

	res, payment, err := h.payments.PreAuthorize(ctx, user.UserID, &req)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if payment != nil {
		c.Response().Header().Set("X-Payment-Id", payment.ID.String())
	}

	return writeGatewayBody(c, res.HTTPStatus, res)
}

// Capture handles POST /api/v1/payments/capture/:paymentId
func (h *PaymentHandler) Capture(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil || user == nil {
		return err
	}

	var req entity.CaptureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  pkgerrors.ErrInvalidArgument,
		})
	}

	ctx, cancel := detached(c)
	defer cancel()

	res, err := h.payments.Capture(ctx, user.UserID, c.Param("paymentId"), &req)
	if err != nil {
		var rejected *domainErrors.GatewayRejectedError
		if errors.As(err, &rejected) {
			return c.JSON(http.StatusBadRequest, captureRejection(rejected))
		}
		return writeError(c, h.logger, err)
	}

	return writeGatewayBody(c, http.StatusOK, res)
}

func captureRejection(rejected *domainErrors.GatewayRejectedError) echo.Map {
	body := echo.Map{
		"error":   "Capture failed",
		"message": rejected.Message,
		"code":    rejected.Code,
	}
	if len(rejected.Raw) > 0 {
		body["details"] = json.RawMessage(rejected.Raw)
	} else {
		body["details"] = echo.Map{"description": rejected.Description}
	}
	if hints := gateway.TroubleshootingFor(rejected.Code); hints != nil {
		body["troubleshooting"] = hints
	}
	return body
}

// Manage handles POST /api/v1/payments/manage/:paymentId
func (h *PaymentHandler) Manage(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil || user == nil {
		return err
	}

	var req entity.ManageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  pkgerrors.ErrInvalidArgument,
		})
	}

	ctx, cancel := detached(c)
	defer cancel()

	res, err := h.backOffice.Manage(ctx, user.UserID, c.Param("paymentId"), &req)
	if err != nil {
		var rejected *domainErrors.GatewayRejectedError
		if errors.As(err, &rejected) {
			return writeRejectedVerbatim(c, rejected)
		}
		return writeError(c, h.logger, err)
	}

	return writeGatewayBody(c, http.StatusOK, res)
}

// History handles GET and POST /api/v1/payments/history
func (h *PaymentHandler) History(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil || user == nil {
		return err
	}

	var query historyQuery
	if c.Request().Method == http.MethodPost && c.Request().ContentLength != 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&query); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid request body",
				"code":  pkgerrors.ErrInvalidArgument,
			})
		}
	} else {
		query.Status = c.QueryParam("status")
		if query.Limit, err = intParam(c, "limit"); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid limit parameter",
				"code":  pkgerrors.ErrInvalidArgument,
			})
		}
		if query.Offset, err = intParam(c, "offset"); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid offset parameter",
				"code":  pkgerrors.ErrInvalidArgument,
			})
		}
	}

	history, err := h.payments.History(c.Request().Context(), entity.HistoryFilter{
		UserID: user.UserID,
		Status: model.PaymentStatus(query.Status),
		PaginationParams: entity.PaginationParams{
			Limit:  query.Limit,
			Offset: query.Offset,
		},
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"data":       history.Data,
		"pagination": history.Pagination,
	})
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	user, paymentID, err := h.ownedPayment(c)
	if err != nil || user == nil {
		return err
	}

	payment, err := h.payments.Get(c.Request().Context(), user.UserID, paymentID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": payment})
}

// GetEvents handles GET /api/v1/payments/:id/events
func (h *PaymentHandler) GetEvents(c echo.Context) error {
	user, paymentID, err := h.ownedPayment(c)
	if err != nil || user == nil {
		return err
	}

	events, err := h.payments.Events(c.Request().Context(), user.UserID, paymentID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": events})
}

// GetTransfers handles GET /api/v1/payments/:id/transfers
func (h *PaymentHandler) GetTransfers(c echo.Context) error {
	user, paymentID, err := h.ownedPayment(c)
	if err != nil || user == nil {
		return err
	}

	transfers, err := h.payments.Transfers(c.Request().Context(), user.UserID, paymentID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": transfers})
}

// RetryPayout handles POST /api/v1/payments/:id/payout/retry
func (h *PaymentHandler) RetryPayout(c echo.Context) error {
	user, paymentID, err := h.ownedPayment(c)
	if err != nil || user == nil {
		return err
	}

	ctx, cancel := detached(c)
	defer cancel()

	result, err := h.payments.RetryPayout(ctx, user.UserID, paymentID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
		if result.Error == domainErrors.ErrPayoutInProgress.Error() {
			status = http.StatusConflict
		}
	}

	return c.JSON(status, result)
}

// ownedPayment authenticates the caller and parses the :id parameter. A nil
// user with a nil error means a response was already written.
func (h *PaymentHandler) ownedPayment(c echo.Context) (*auth.AuthUser, uuid.UUID, error) {
	user, err := auth.RequireAuth(c)
	if err != nil || user == nil {
		return nil, uuid.Nil, err
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid payment id",
			"code":  pkgerrors.ErrInvalidArgument,
		})
	}
	return user, paymentID, nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
