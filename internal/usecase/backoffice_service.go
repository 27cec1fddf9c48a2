package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// BackOfficeService runs follow-up operations on settled payments.
type BackOfficeService struct {
	payments repository.PaymentRepository
	gateway  gateway.Client
	ledger   *statusLedger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewBackOfficeService(
	payments repository.PaymentRepository,
	gatewayClient gateway.Client,
	publisher event.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BackOfficeService {
	return &BackOfficeService{
		payments: payments,
		gateway:  gatewayClient,
		ledger:   newStatusLedger(payments, publisher, m, logger),
		metrics:  m,
		logger:   logger,
	}
}

// Manage sends a refund, rebill, chargeback or chargeback reversal for gatewayID.
// A gateway rejection is returned as *errors.GatewayRejectedError with no local change.
func (s *BackOfficeService) Manage(ctx context.Context, actor uuid.UUID, gatewayID string, req *entity.ManageRequest) (*gateway.Result, error) {
	op, err := gateway.ParseOperation(req.Operation)
	if err != nil {
		return nil, domainErrors.NewValidationError(
			"Invalid operation. Allowed operations: "+gateway.AllowedOperations,
			map[string]interface{}{"operation": req.Operation})
	}
	amount, currency, err := parseAmountAndCurrency(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("gateway_id", gatewayID),
		zap.String("operation", op.Name()),
		zap.String("actor", actor.String()))

	res, err := s.gateway.Manage(ctx, gatewayID, op, amount, currency)
	if err != nil {
		s.metrics.GatewayOperation(op.Name(), "error")
		log.Error("Back-office call failed", zap.Error(err))
		return nil, err
	}
	if !res.Succeeded() {
		s.metrics.GatewayOperation(op.Name(), "rejected")
		log.Warn("Back-office operation rejected by gateway",
			zap.String("result_code", res.Result.Code),
			zap.String("description", res.Result.Description))
		return nil, &domainErrors.GatewayRejectedError{
			Code:        res.Result.Code,
			Description: res.Result.Description,
			Message:     gateway.DescribeCode(res.Result.Code, res.Result.Description),
			HTTPStatus:  res.HTTPStatus,
			Raw:         res.Raw,
		}
	}
	s.metrics.GatewayOperation(op.Name(), "success")

	payment, err := s.resolve(ctx, res.ReferencedID, gatewayID)
	if err != nil {
		log.Error("Failed to look up payment after back-office operation", zap.Error(err))
		return res, nil
	}
	if payment == nil {
		log.Warn("Back-office operation on a payment that is not in the ledger")
		return res, nil
	}

	target := statusAfter(op, payment.Status)
	change := statusChange{
		Trigger:           model.TriggerManage,
		Actor:             actor.String(),
		GatewayID:         res.ID,
		Latest:            true,
		ResultCode:        res.Result.Code,
		ResultDescription: res.Result.Description,
		Metadata: model.JSONB{
			"operation": op.Name(),
			"amount":    amount.String(),
			"currency":  currency,
		},
	}

	if !payment.Status.CanTransition(target) {
		log.Warn("Back-office result does not fit the payment status",
			zap.String("status", string(payment.Status)),
			zap.String("target", string(target)))
		s.ledger.note(ctx, payment, op.Name(), change)
		return res, nil
	}

	if _, err := s.ledger.transition(ctx, payment, target, change); err != nil {
		log.Error("Failed to record back-office result",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return res, nil
	}

	log.Info("Back-office operation applied",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(target)))
	return res, nil
}

// resolve finds the payment by the referenced id, then by the requested id.
func (s *BackOfficeService) resolve(ctx context.Context, referencedID, gatewayID string) (*model.Payment, error) {
	if referencedID != "" {
		payment, err := s.payments.FindByGatewayID(ctx, referencedID)
		if err != nil || payment != nil || referencedID == gatewayID {
			return payment, err
		}
	}
	return s.payments.FindByGatewayID(ctx, gatewayID)
}

// statusAfter maps a successful operation to the resulting status. Rebill keeps it.
func statusAfter(op gateway.Operation, current model.PaymentStatus) model.PaymentStatus {
	switch op {
	case gateway.OperationRefund:
		return model.PaymentStatusRefunded
	case gateway.OperationChargeback:
		return model.PaymentStatusChargeback
	case gateway.OperationChargebackReversal:
		return model.PaymentStatusChargebackReversed
	default:
		return current
	}
}
