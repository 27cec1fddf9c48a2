// Package worker runs background jobs against the payment ledger.
package worker

import (
	"context"
	"time"

	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Gateway views of a stuck payment.
const (
	gatewayAuthorized  = "authorized"
	gatewayRejected    = "rejected"
	gatewayUnreachable = "unreachable"
)

var staleStatuses = []model.PaymentStatus{
	model.PaymentStatusAuthorized,
	model.PaymentStatusErrorCapture,
}

// ReconciliationWorker reports payments stuck before capture. It only reads the
// gateway and appends audit events; it never captures.
type ReconciliationWorker struct {
	payments   repository.PaymentRepository
	gateway    gateway.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func NewReconciliationWorker(
	cfg config.ReconciliationConfig,
	payments repository.PaymentRepository,
	gatewayClient gateway.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		payments:   payments,
		gateway:    gatewayClient,
		metrics:    m,
		logger:     logger,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		now:        time.Now,
	}
}

func (w *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Reconciliation worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("stale_after", w.staleAfter))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Reconcile(ctx); err != nil {
				w.logger.Error("Reconciliation failed", zap.Error(err))
			}
		}
	}
}

// Reconcile checks one batch of stale payments and returns how many were checked.
func (w *ReconciliationWorker) Reconcile(ctx context.Context) (int, error) {
	stale, err := w.payments.ListStale(ctx, staleStatuses, w.now().Add(-w.staleAfter), w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	w.logger.Info("Found stale payments", zap.Int("count", len(stale)))

	for _, p := range stale {
		w.check(ctx, p)
	}
	return len(stale), nil
}

func (w *ReconciliationWorker) check(ctx context.Context, p *model.Payment) {
	gatewayID := p.PaymentID
	if gatewayID == "" {
		gatewayID = p.ReferenceID
	}
	log := w.logger.With(
		zap.String("payment_id", p.ID.String()),
		zap.String("gateway_id", gatewayID),
		zap.String("status", string(p.Status)))

	metadata := model.JSONB{
		"event":          model.EventReconciliation,
		"stale_since":    p.UpdatedAt.UTC().Format(time.RFC3339),
		"ledger_version": p.Version,
	}

	view := gatewayUnreachable
	resultCode := ""
	res, err := w.gateway.QueryStatus(ctx, gatewayID)
	switch {
	case err != nil:
		metadata["error"] = err.Error()
		log.Warn("Gateway status query failed", zap.Error(err))
	case res.Succeeded():
		view = gatewayAuthorized
		resultCode = res.Result.Code
		metadata["gateway_payment_type"] = res.PaymentType
		log.Info("Stale payment is still authorized at the gateway", zap.String("result_code", resultCode))
	default:
		view = gatewayRejected
		resultCode = res.Result.Code
		metadata["gateway_description"] = res.Result.Description
		log.Warn("Stale payment is not authorized at the gateway", zap.String("result_code", resultCode))
	}
	metadata["gateway_view"] = view

	w.metrics.ReconciliationCheck(string(p.Status), view)

	err = w.payments.AppendEvent(ctx, &model.PaymentEvent{
		PaymentID:  p.ID,
		FromStatus: p.Status,
		ToStatus:   p.Status,
		Trigger:    model.TriggerReconciliation,
		GatewayID:  gatewayID,
		ResultCode: resultCode,
		Actor:      model.ActorSystem,
		Metadata:   metadata,
	})
	if err != nil {
		log.Error("Failed to record reconciliation check", zap.Error(err))
	}
}
