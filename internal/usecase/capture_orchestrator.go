package usecase

import (
	"context"
	"errors"

	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome is how a gateway notification was handled.
type Outcome string

const (
	OutcomeNotFound         Outcome = "not_found"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotSuccessful    Outcome = "not_successful"
	OutcomeConflict         Outcome = "conflict"
	OutcomeNotCapturable    Outcome = "not_capturable"
	OutcomeCaptured         Outcome = "captured"
	OutcomeCaptureFailed    Outcome = "capture_failed"
	OutcomeCaptureError     Outcome = "capture_error"
	OutcomePayoutResumed    Outcome = "payout_resumed"
	OutcomeError            Outcome = "error"
)

// Notification is a verified gateway notification.
type Notification struct {
	GatewayID   string
	ResultCode  string
	Description string
}

// CaptureOrchestrator turns authorization notifications into captures and payouts.
type CaptureOrchestrator struct {
	payments repository.PaymentRepository
	gateway  gateway.Client
	payouts  *PayoutEngine
	ledger   *statusLedger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCaptureOrchestrator(
	payments repository.PaymentRepository,
	gatewayClient gateway.Client,
	payouts *PayoutEngine,
	publisher event.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CaptureOrchestrator {
	return &CaptureOrchestrator{
		payments: payments,
		gateway:  gatewayClient,
		payouts:  payouts,
		ledger:   newStatusLedger(payments, publisher, m, logger),
		metrics:  m,
		logger:   logger,
	}
}

// HandleNotification runs one notification to completion. The error is set only
// when the payment could not be read; every other failure is an outcome.
func (o *CaptureOrchestrator) HandleNotification(ctx context.Context, n Notification) (Outcome, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "capture.handle_notification")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.id", n.GatewayID),
		attribute.String("gateway.result_code", n.ResultCode),
	)

	outcome, err := o.handle(ctx, n)
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
	}
	return outcome, err
}

func (o *CaptureOrchestrator) handle(ctx context.Context, n Notification) (Outcome, error) {
	log := o.logger.With(
		zap.String("gateway_id", n.GatewayID),
		zap.String("result_code", n.ResultCode))

	p, err := o.payments.FindByGatewayID(ctx, n.GatewayID)
	if err != nil {
		return OutcomeError, err
	}
	if p == nil {
		log.Warn("Notification for unknown payment")
		return OutcomeNotFound, nil
	}
	log = log.With(zap.String("payment_id", p.ID.String()), zap.String("status", string(p.Status)))

	if p.Status == model.PaymentStatusSuccess && p.TransferStatus == model.TransferStatusSuccess {
		log.Info("Payment already settled")
		return OutcomeAlreadyProcessed, nil
	}

	webhook := statusChange{
		Trigger:           model.TriggerWebhook,
		Actor:             model.ActorGateway,
		GatewayID:         n.GatewayID,
		ResultCode:        n.ResultCode,
		ResultDescription: n.Description,
	}

	if !gateway.IsNotificationSuccess(n.ResultCode) {
		log.Info("Notification is not a success", zap.String("description", n.Description))
		o.ledger.note(ctx, p, model.EventWebhookRejected, statusChange{
			Trigger:    model.TriggerWebhook,
			Actor:      model.ActorGateway,
			GatewayID:  n.GatewayID,
			ResultCode: n.ResultCode,
			Metadata:   model.JSONB{"description": n.Description},
		})
		return OutcomeNotSuccessful, nil
	}

	switch p.Status {
	case model.PaymentStatusPending, model.PaymentStatusAuthorized, model.PaymentStatusErrorCapture:
		// authorized -> authorized bumps the version, so only one delivery captures.
		claimed, err := o.ledger.transition(ctx, p, model.PaymentStatusAuthorized, webhook)
		if err != nil {
			if errors.Is(err, domainErrors.ErrStatusConflict) {
				log.Info("Capture claimed by a concurrent notification")
				return OutcomeConflict, nil
			}
			return OutcomeError, err
		}
		return o.capture(ctx, claimed, log), nil

	case model.PaymentStatusSuccess:
		log.Info("Resuming payout for captured payment")
		o.payout(ctx, p, log)
		return OutcomePayoutResumed, nil

	default:
		log.Info("Payment is not capturable")
		return OutcomeNotCapturable, nil
	}
}

// capture runs against the pre-authorization, using the recorded amount and currency.
func (o *CaptureOrchestrator) capture(ctx context.Context, p *model.Payment, log *zap.Logger) Outcome {
	res, err := o.gateway.Capture(ctx, p.ReferenceID, p.Amount, p.Currency)
	if err != nil {
		o.metrics.GatewayOperation("capture", "error")
		log.Error("Capture call failed", zap.Error(err))
		o.settle(ctx, p, model.PaymentStatusErrorCapture, statusChange{
			Trigger:  model.TriggerCapture,
			Actor:    model.ActorSystem,
			Metadata: model.JSONB{"error": err.Error()},
		}, log)
		return OutcomeCaptureError
	}

	change := statusChange{
		Trigger:           model.TriggerCapture,
		Actor:             model.ActorSystem,
		GatewayID:         res.ID,
		ResultCode:        res.Result.Code,
		ResultDescription: res.Result.Description,
	}

	if !res.Succeeded() {
		o.metrics.GatewayOperation("capture", "rejected")
		log.Warn("Capture rejected by gateway",
			zap.String("capture_code", res.Result.Code),
			zap.String("capture_description", res.Result.Description))
		o.settle(ctx, p, model.PaymentStatusFailedCapture, change, log)
		return OutcomeCaptureFailed
	}

	o.metrics.GatewayOperation("capture", "success")
	log.Info("Payment captured", zap.String("capture_id", res.ID))

	change.Latest = true
	if captured := o.settle(ctx, p, model.PaymentStatusSuccess, change, log); captured != nil {
		p = captured
	} else {
		p.Status = model.PaymentStatusSuccess
	}

	o.payout(ctx, p, log)
	return OutcomeCaptured
}

// settle records a capture result. Failures are logged only; the gateway call already happened.
func (o *CaptureOrchestrator) settle(ctx context.Context, p *model.Payment, to model.PaymentStatus, c statusChange, log *zap.Logger) *model.Payment {
	updated, err := o.ledger.transition(ctx, p, to, c)
	if err != nil {
		log.Error("Failed to record capture result",
			zap.String("to", string(to)),
			zap.Error(err))
		return nil
	}
	return updated
}

func (o *CaptureOrchestrator) payout(ctx context.Context, p *model.Payment, log *zap.Logger) {
	if !p.PayoutConfigured() {
		log.Info("Payout skipped, destination incomplete")
		o.ledger.note(ctx, p, model.EventPayoutSkipped, statusChange{
			Trigger: model.TriggerPayout,
			Actor:   model.ActorSystem,
			Metadata: model.JSONB{
				"wallet_address":  p.WalletAddress,
				"crypto_currency": p.CryptoCurrency,
				"network":         p.Network,
			},
		})
		return
	}

	result := o.payouts.Transfer(ctx, PayoutRequest{
		UserID:        p.UserID,
		PaymentID:     p.ID,
		Amount:        p.PayoutAmount(),
		Currency:      p.CryptoCurrency,
		WalletAddress: p.WalletAddress,
		Network:       p.Network,
	})
	if !result.Success {
		log.Warn("Payout did not complete", zap.String("error", result.Error))
		return
	}
	log.Info("Payout complete",
		zap.String("tx_hash", result.TxHash),
		zap.Bool("already_transferred", result.AlreadyTransferred))
}
